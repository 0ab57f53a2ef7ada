package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"transcript-compare/internal/domain"
)

// defaultClient is shared by the HTTP-backed adapters. Long timeout because
// synchronous providers transcribe whole files inside one call.
var defaultClient = &http.Client{Timeout: 5 * time.Minute}

// provErr classifies an HTTP outcome: timeouts, 408/429 and 5xx are
// transient; other 4xx are permanent.
func provErr(provider, op string, status int, err error) error {
	transient := status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= 500
	if err == nil {
		err = fmt.Errorf("request rejected")
	}
	return &domain.ProviderError{
		Provider:   provider,
		Op:         op,
		StatusCode: status,
		Transient:  transient,
		Err:        err,
	}
}

// netErr wraps a transport-level failure; always transient.
func netErr(provider, op string, err error) error {
	return &domain.ProviderError{Provider: provider, Op: op, Transient: true, Err: err}
}

func doJSON(ctx context.Context, client *http.Client, provider, op, method, url string, headers map[string]string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: marshal: %w", provider, op, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return fmt.Errorf("%s %s: %w", provider, op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return netErr(provider, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return provErr(provider, op, resp.StatusCode, fmt.Errorf("%s", bytes.TrimSpace(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return provErr(provider, op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func decodeBody(resp *http.Response, out interface{}) error {
	return json.NewDecoder(resp.Body).Decode(out)
}

// fetchAudio downloads the stored audio for providers that take bytes rather
// than a URL. The storage URL is opaque; bytes travel over plain HTTP.
func fetchAudio(ctx context.Context, client *http.Client, provider, audioURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s fetch audio: %w", provider, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, netErr(provider, "fetch_audio", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, provErr(provider, "fetch_audio", resp.StatusCode, fmt.Errorf("audio not fetchable"))
	}
	return io.ReadAll(resp.Body)
}

// multipartAudio builds a multipart body with the audio under fieldName plus
// any extra string fields.
func multipartAudio(fieldName, fileName string, audio []byte, fields map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(fieldName, fileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, "", err
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// commonLanguages is the language surface most providers in the table share.
var commonLanguages = []string{"auto", "en", "de", "es", "fr", "it", "pt", "nl", "pl", "ru", "ja", "ko", "zh"}

func langOrEmpty(code string) string {
	if code == "auto" {
		return ""
	}
	return code
}
