package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBlobs struct {
	calls int
	name  string
	ct    string
	data  []byte
	err   error
}

func (f *fakeBlobs) Upload(ctx context.Context, bucket, name string, body io.Reader, size int64, contentType string) (string, error) {
	f.calls++
	f.name = name
	f.ct = contentType
	f.data, _ = io.ReadAll(body)
	if f.err != nil {
		return "", f.err
	}
	return name, nil
}

func (f *fakeBlobs) PublicURL(bucket, path string) string {
	return "https://cdn.example.com/" + bucket + "/" + path
}

type outcome struct {
	url string
	err string
}

func (o *outcome) callbacks() Callbacks {
	return Callbacks{
		OnComplete: func(u string) { o.url = u },
		OnError:    func(m string) { o.err = m },
	}
}

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestOversizedFileRejectedBeforeUpload(t *testing.T) {
	blobs := &fakeBlobs{}
	u := New(blobs, "posts")
	var o outcome
	u.AcceptFile(context.Background(), File{Name: "big.png", Size: 6 << 20, ContentType: "image/png", Body: bytes.NewReader(nil)}, o.callbacks())

	assert.Equal(t, "File is larger than 5MB", o.err)
	assert.Empty(t, o.url)
	assert.Equal(t, 0, blobs.calls)
}

func TestWrongTypeRejectedBeforeUpload(t *testing.T) {
	blobs := &fakeBlobs{}
	u := New(blobs, "posts")
	var o outcome
	u.AcceptFile(context.Background(), File{Name: "doc.pdf", Size: 10, ContentType: "application/pdf", Body: strings.NewReader("%PDF-1.4")}, o.callbacks())

	assert.Equal(t, "File type application/pdf is not accepted", o.err)
	assert.Equal(t, 0, blobs.calls)
}

func TestAcceptFileUploadsAndReportsPublicURL(t *testing.T) {
	blobs := &fakeBlobs{}
	u := New(blobs, "avatars")
	var o outcome
	u.AcceptFile(context.Background(), File{Name: "Me.PNG", Size: int64(len(pngHeader)), ContentType: "image/png", Body: bytes.NewReader(pngHeader)}, o.callbacks())

	require.Empty(t, o.err)
	assert.Equal(t, 1, blobs.calls)
	assert.True(t, strings.HasSuffix(blobs.name, ".png"), blobs.name)
	assert.Equal(t, "https://cdn.example.com/avatars/"+blobs.name, o.url)
	assert.Equal(t, pngHeader, blobs.data)
}

func TestAcceptFileSniffsMissingType(t *testing.T) {
	blobs := &fakeBlobs{}
	u := New(blobs, "posts")
	var o outcome
	u.AcceptFile(context.Background(), File{Name: "noext", Size: int64(len(pngHeader)), Body: bytes.NewReader(pngHeader)}, o.callbacks())

	require.Empty(t, o.err)
	assert.Equal(t, "image/png", blobs.ct)
	assert.True(t, strings.HasSuffix(blobs.name, ".png"), blobs.name)
	assert.Equal(t, pngHeader, blobs.data, "sniffed bytes are replayed")

	var o2 outcome
	u.AcceptFile(context.Background(), File{Name: "x.bin", Size: 5, ContentType: "application/octet-stream", Body: strings.NewReader("hello")}, o2.callbacks())
	assert.Equal(t, "File type text/plain is not accepted", o2.err)
}

func TestUploadFailureGoesToOnError(t *testing.T) {
	blobs := &fakeBlobs{err: errors.New("bucket not found")}
	u := New(blobs, "posts")
	var o outcome
	u.AcceptFile(context.Background(), File{Name: "a.gif", Size: 3, ContentType: "image/gif", Body: strings.NewReader("GIF")}, o.callbacks())
	assert.Equal(t, "bucket not found", o.err)
	assert.Empty(t, o.url)
}

func TestNilCallbacksDoNotPanic(t *testing.T) {
	u := New(&fakeBlobs{}, "posts")
	assert.NotPanics(t, func() {
		u.AcceptFile(context.Background(), File{Name: "a.png", Size: 7 << 20, ContentType: "image/png", Body: bytes.NewReader(nil)}, Callbacks{})
		u.AcceptURL("nope", Callbacks{})
	})
}

func TestAcceptURL(t *testing.T) {
	u := New(&fakeBlobs{}, "posts")

	var o outcome
	u.AcceptURL("https://images.example.com/cat.JPG?w=200", o.callbacks())
	assert.Equal(t, "https://images.example.com/cat.JPG?w=200", o.url)

	for _, bad := range []string{"not a url", "/relative/cat.png", "https://example.com/page.html", "https://example.com/"} {
		var o outcome
		u.AcceptURL(bad, o.callbacks())
		assert.Equal(t, InvalidURLMessage, o.err, bad)
		assert.Empty(t, o.url, bad)
	}

	any := &Uploader{Blobs: &fakeBlobs{}, Accepted: []string{"*/*"}}
	var o3 outcome
	any.AcceptURL("https://example.com/page.html", o3.callbacks())
	assert.Equal(t, "https://example.com/page.html", o3.url)
}

func TestAcceptsPatterns(t *testing.T) {
	assert.True(t, Accepts([]string{"image/*"}, "image/webp"))
	assert.True(t, Accepts([]string{"image/png"}, "IMAGE/PNG; charset=binary"))
	assert.False(t, Accepts([]string{"image/png"}, "image/gif"))
	assert.True(t, Accepts([]string{"*/*"}, "application/zip"))
	assert.False(t, Accepts([]string{"image/*"}, "imagex/png"))
}

func TestSizeMessage(t *testing.T) {
	assert.Equal(t, "File is larger than 5MB", SizeMessage(5<<20))
	assert.Equal(t, "File is larger than 1.5MB", SizeMessage(3<<19))
}
