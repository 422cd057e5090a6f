package s3

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/config"
)

type storedObject struct {
	body        []byte
	contentType string
}

// fakeBucket serves the handful of S3 calls the client makes from memory.
type fakeBucket struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]storedObject
}

func (f *fakeBucket) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	if parts[0] != f.bucket {
		return xmlError(http.StatusNotFound, "NoSuchBucket"), nil
	}
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	switch req.Method {
	case http.MethodHead:
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	case http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		f.objects[key] = storedObject{body: body, contentType: req.Header.Get("Content-Type")}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{"ETag": {`"etag"`}}}, nil
	case http.MethodGet:
		obj, ok := f.objects[key]
		if !ok {
			return xmlError(http.StatusNotFound, "NoSuchKey"), nil
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(obj.body)),
			Header: http.Header{
				"Content-Type":   {obj.contentType},
				"Content-Length": {strconv.Itoa(len(obj.body))},
			},
			ContentLength: int64(len(obj.body)),
		}, nil
	}
	return xmlError(http.StatusNotImplemented, "NotImplemented"), nil
}

func xmlError(status int, code string) *http.Response {
	body := `<?xml version="1.0" encoding="UTF-8"?><Error><Code>` + code + `</Code><Message>` + code + `</Message></Error>`
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": {"application/xml"}},
	}
}

func newTestClient(t *testing.T) (*Client, *fakeBucket) {
	t.Helper()
	fake := &fakeBucket{bucket: "lab-bills", objects: map[string]storedObject{}}
	cfg := config.S3Config{
		Bucket:          "lab-bills",
		Region:          "us-east-1",
		Endpoint:        "https://s3.mock.local",
		PathStyle:       true,
		AccessKeyID:     "AKIATEST",
		SecretAccessKey: "secret",
	}
	client, err := NewClient(context.Background(), cfg, nil,
		WithHTTPClient(&http.Client{Transport: fake}),
		func(o *s3.Options) { o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired },
	)
	require.NoError(t, err)
	return client, fake
}

func TestNewClientRequiresBucket(t *testing.T) {
	_, err := NewClient(context.Background(), config.S3Config{}, nil)
	require.Error(t, err)
}

func TestPutThenGet(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	url, err := client.Put(ctx, "bills/lab-1/17000-invoice.pdf", "application/pdf", []byte("%PDF-1.4 bill"))
	require.NoError(t, err)
	require.Equal(t, "https://s3.mock.local/lab-bills/bills/lab-1/17000-invoice.pdf", url)
	require.Contains(t, fake.objects, "bills/lab-1/17000-invoice.pdf")
	require.Equal(t, "application/pdf", fake.objects["bills/lab-1/17000-invoice.pdf"].contentType)

	obj, err := client.Get(ctx, "bills/lab-1/17000-invoice.pdf")
	require.NoError(t, err)
	defer obj.Body.Close()
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 bill", string(data))
	require.Equal(t, "application/pdf", obj.ContentType)
}

func TestGetMissingObject(t *testing.T) {
	client, _ := newTestClient(t)
	_, err := client.Get(context.Background(), "bills/none.pdf")
	require.Error(t, err)
}

func TestPingHeadsBucket(t *testing.T) {
	client, _ := newTestClient(t)
	require.NoError(t, client.Ping(context.Background()))
}

func TestObjectURLWithoutEndpoint(t *testing.T) {
	c := &Client{bucket: "lab-bills", region: "ap-south-1"}
	require.Equal(t, "https://lab-bills.s3.ap-south-1.amazonaws.com/bills/x/a%20b.pdf", c.ObjectURL("bills/x/a b.pdf"))
}
