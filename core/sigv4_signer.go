package core

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	sigV4Algorithm           = "AWS4-HMAC-SHA256"
	sigV4AccessTokenHeader   = "x-amz-access-token"
	sigV4DateHeader          = "X-Amz-Date"
	sigV4SecurityTokenHeader = "X-Amz-Security-Token"
	sigV4TerminationString   = "aws4_request"
	maxSignableRequestBody   = 8 << 20 // 8 MiB
)

// SigV4Signer signs SP-API requests with AWS Signature Version 4. The
// signer is a pure value: given the same request, credentials, and clock
// it always produces the same header set.
type SigV4Signer struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
	Service         string
	Now             func() time.Time
}

func NewSigV4Signer(cfg Config) (SigV4Signer, error) {
	signer := SigV4Signer{
		AccessKeyID:     strings.TrimSpace(cfg.AWS.AccessKeyID),
		SecretAccessKey: strings.TrimSpace(cfg.AWS.SecretAccessKey),
		SessionToken:    strings.TrimSpace(cfg.AWS.SessionToken),
		Region:          strings.ToLower(strings.TrimSpace(cfg.SPAPI.Region)),
		Service:         strings.TrimSpace(cfg.SPAPI.Service),
	}
	if signer.Region == "" {
		signer.Region = DefaultSPAPIRegion
	}
	if signer.Service == "" {
		signer.Service = DefaultSPAPIService
	}
	if err := signer.validate(); err != nil {
		return SigV4Signer{}, err
	}
	return signer, nil
}

func (s SigV4Signer) validate() error {
	if strings.TrimSpace(s.AccessKeyID) == "" {
		return NewConfigurationError("core: aws access key id is required for sigv4 signing")
	}
	if strings.TrimSpace(s.SecretAccessKey) == "" {
		return NewConfigurationError("core: aws secret access key is required for sigv4 signing")
	}
	if strings.TrimSpace(s.Region) == "" {
		return NewConfigurationError("core: aws region is required for sigv4 signing")
	}
	if strings.TrimSpace(s.Service) == "" {
		return NewConfigurationError("core: aws service is required for sigv4 signing")
	}
	return nil
}

// Sign adds x-amz-date, the optional session token and access token
// headers, and the Authorization header to req. The request body is read
// and restored to compute the payload hash.
func (s SigV4Signer) Sign(_ context.Context, req *http.Request, accessToken string) error {
	if req == nil {
		return fmt.Errorf("core: http request is required")
	}
	if err := s.validate(); err != nil {
		return err
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	signedAt := now().UTC()
	amzDate := signedAt.Format("20060102T150405Z")
	dateStamp := signedAt.Format("20060102")

	req.Header.Del("Authorization")
	req.Header.Set(sigV4DateHeader, amzDate)
	if s.SessionToken != "" {
		req.Header.Set(sigV4SecurityTokenHeader, s.SessionToken)
	}
	if token := strings.TrimSpace(accessToken); token != "" {
		req.Header.Set(sigV4AccessTokenHeader, token)
	}

	payloadHash, err := requestPayloadHash(req)
	if err != nil {
		return err
	}

	canonicalHeaders, signedHeaders := s.canonicalHeaderBlock(req, amzDate)
	canonicalRequest := strings.Join([]string{
		strings.ToUpper(strings.TrimSpace(req.Method)),
		canonicalURI(req.URL),
		canonicalQueryString(req.URL.Query()),
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	credentialScope := strings.Join(
		[]string{dateStamp, s.Region, s.Service, sigV4TerminationString},
		"/",
	)
	stringToSign := strings.Join([]string{
		sigV4Algorithm,
		amzDate,
		credentialScope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	signature := s.signature(dateStamp, stringToSign)
	req.Header.Set("Authorization", fmt.Sprintf(
		"%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		sigV4Algorithm,
		s.AccessKeyID,
		credentialScope,
		signedHeaders,
		signature,
	))
	return nil
}

// canonicalHeaderBlock covers host, x-amz-date, and the session token when
// present. Other headers stay unsigned, which SigV4 allows.
func (s SigV4Signer) canonicalHeaderBlock(req *http.Request, amzDate string) (string, string) {
	host := req.Host
	if host == "" && req.URL != nil {
		host = req.URL.Host
	}
	headers := map[string]string{
		"host":       compressSpaces(strings.ToLower(host)),
		"x-amz-date": amzDate,
	}
	if s.SessionToken != "" {
		headers["x-amz-security-token"] = compressSpaces(s.SessionToken)
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteString(":")
		b.WriteString(headers[name])
		b.WriteByte('\n')
	}
	return b.String(), strings.Join(names, ";")
}

func (s SigV4Signer) signature(dateStamp, stringToSign string) string {
	kDate := hmacSHA256([]byte("AWS4"+s.SecretAccessKey), dateStamp)
	kRegion := hmacSHA256(kDate, s.Region)
	kService := hmacSHA256(kRegion, s.Service)
	kSigning := hmacSHA256(kService, sigV4TerminationString)
	return hex.EncodeToString(hmacSHA256(kSigning, stringToSign))
}

// canonicalURI percent-encodes each path segment against the RFC 3986
// unreserved set, leaving slashes intact.
func canonicalURI(requestURL *url.URL) string {
	if requestURL == nil {
		return "/"
	}
	path := requestURL.EscapedPath()
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		decoded, err := url.PathUnescape(segment)
		if err != nil {
			decoded = segment
		}
		segments[i] = awsURIEscape(decoded)
	}
	return strings.Join(segments, "/")
}

func canonicalQueryString(query url.Values) string {
	if len(query) == 0 {
		return ""
	}
	type pair struct {
		key   string
		value string
	}
	pairs := make([]pair, 0, len(query))
	for key, list := range query {
		encodedKey := awsURIEscape(key)
		if len(list) == 0 {
			pairs = append(pairs, pair{key: encodedKey})
			continue
		}
		for _, value := range list {
			pairs = append(pairs, pair{key: encodedKey, value: awsURIEscape(value)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key == pairs[j].key {
			return pairs[i].value < pairs[j].value
		}
		return pairs[i].key < pairs[j].key
	})

	encoded := make([]string, 0, len(pairs))
	for _, p := range pairs {
		encoded = append(encoded, p.key+"="+p.value)
	}
	return strings.Join(encoded, "&")
}

// awsURIEscape encodes everything outside the RFC 3986 unreserved set.
func awsURIEscape(value string) string {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c >= 'A' && c <= 'Z',
			c >= 'a' && c <= 'z',
			c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func requestPayloadHash(req *http.Request) (string, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return sha256Hex(nil), nil
	}
	body, err := io.ReadAll(io.LimitReader(req.Body, maxSignableRequestBody+1))
	if err != nil {
		return "", fmt.Errorf("core: read request body for signing: %w", err)
	}
	_ = req.Body.Close()
	if int64(len(body)) > maxSignableRequestBody {
		return "", fmt.Errorf("core: request body exceeds %d signable bytes", maxSignableRequestBody)
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	return sha256Hex(body), nil
}

func hmacSHA256(key []byte, value string) []byte {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(value))
	return mac.Sum(nil)
}

func sha256Hex(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func compressSpaces(value string) string {
	parts := strings.Fields(strings.TrimSpace(value))
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ")
}

var _ RequestSigner = SigV4Signer{}
