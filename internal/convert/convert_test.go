package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/invex/internal/providers"
)

type fakeOCR struct {
	calls    atomic.Int32
	failures int32 // calls that fail with a transport error before succeeding
	err      error // returned on every call when set
	mime     string
}

func (f *fakeOCR) Name() string                  { return "fake-ocr" }
func (f *fakeOCR) RequestsPerSecond() float64    { return 0 }
func (f *fakeOCR) MaxRetries() int               { return 2 }
func (f *fakeOCR) RetryDelayBase() time.Duration { return time.Millisecond }

func (f *fakeOCR) ProcessDocument(ctx context.Context, doc []byte, mimeType string) (*providers.OCRResult, error) {
	n := f.calls.Add(1)
	f.mime = mimeType
	if f.err != nil {
		return nil, f.err
	}
	if n <= f.failures {
		return nil, &providers.TransportError{Provider: "fake-ocr", StatusCode: 502, Err: errors.New("bad gateway")}
	}
	return &providers.OCRResult{Success: true, Text: "# Invoice INV-1001", Pages: []string{"# Invoice INV-1001"}}, nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetect(t *testing.T) {
	tests := map[string]Format{
		"a.md":    FormatMarkdown,
		"a.TXT":   FormatMarkdown,
		"a.html":  FormatHTML,
		"a.pdf":   FormatPDF,
		"a.jpeg":  FormatImage,
		"a.tiff":  FormatImage,
		"/x/y.md": FormatMarkdown,
	}
	for in, want := range tests {
		if got, err := Detect(in); err != nil || got != want {
			t.Errorf("Detect(%q) = %s, %v; want %s", in, got, err, want)
		}
	}
	if _, err := Detect("a.docx"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Detect(docx) error = %v, want ErrUnsupported", err)
	}
}

func TestRouter_Markdown(t *testing.T) {
	dir := t.TempDir()
	r := NewRouter(RouterConfig{})

	md, err := r.Convert(context.Background(), writeFile(t, dir, "inv.md", "# Invoice\n\nTotal: 100\n\n"))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if md != "# Invoice\n\nTotal: 100\n" {
		t.Errorf("Convert() = %q", md)
	}

	if _, err := r.Convert(context.Background(), writeFile(t, dir, "blank.txt", " \n\t")); !errors.Is(err, ErrEmpty) {
		t.Errorf("Convert(blank) error = %v, want ErrEmpty", err)
	}
}

func TestRouter_HTML(t *testing.T) {
	dir := t.TempDir()
	page := `<html><head><script>alert("x")</script></head><body>
		<h1>Invoice INV-1001</h1>
		<p onclick="steal()">Total: <strong>100.00</strong></p>
	</body></html>`

	md, err := NewRouter(RouterConfig{}).Convert(context.Background(), writeFile(t, dir, "inv.html", page))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if !strings.Contains(md, "# Invoice INV-1001") || !strings.Contains(md, "**100.00**") {
		t.Errorf("Convert() = %q", md)
	}
	if strings.Contains(md, "alert") || strings.Contains(md, "steal") {
		t.Errorf("script content leaked into markdown: %q", md)
	}
}

func TestRouter_OCR(t *testing.T) {
	dir := t.TempDir()

	t.Run("image", func(t *testing.T) {
		ocr := &fakeOCR{}
		md, err := NewRouter(RouterConfig{OCR: ocr}).Convert(context.Background(), writeFile(t, dir, "scan.png", "png-bytes"))
		if err != nil {
			t.Fatalf("Convert() error = %v", err)
		}
		if md != "# Invoice INV-1001\n" || ocr.mime != "image/png" {
			t.Errorf("Convert() = %q, mime = %q", md, ocr.mime)
		}
	})

	t.Run("transport errors are retried", func(t *testing.T) {
		ocr := &fakeOCR{failures: 2}
		if _, err := NewOCR(ocr, nil).Convert(context.Background(), writeFile(t, dir, "scan.jpg", "jpg")); err != nil {
			t.Fatalf("Convert() error = %v", err)
		}
		if ocr.calls.Load() != 3 {
			t.Errorf("calls = %d, want 3", ocr.calls.Load())
		}
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		ocr := &fakeOCR{err: errors.New("unsupported document type")}
		if _, err := NewOCR(ocr, nil).Convert(context.Background(), writeFile(t, dir, "scan.tif", "tif")); err == nil {
			t.Fatal("expected error")
		}
		if ocr.calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", ocr.calls.Load())
		}
	})

	t.Run("invalid pdf rejected before ocr", func(t *testing.T) {
		ocr := &fakeOCR{}
		_, err := NewRouter(RouterConfig{OCR: ocr}).Convert(context.Background(), writeFile(t, dir, "broken.pdf", "not a pdf"))
		if err == nil || !strings.Contains(err.Error(), "invalid PDF") {
			t.Fatalf("Convert() error = %v", err)
		}
		if ocr.calls.Load() != 0 {
			t.Errorf("calls = %d, want 0", ocr.calls.Load())
		}
	})

	t.Run("no provider", func(t *testing.T) {
		if _, err := NewRouter(RouterConfig{}).Convert(context.Background(), writeFile(t, dir, "scan2.png", "png")); err == nil {
			t.Fatal("expected error without OCR provider")
		}
	})
}

func TestOCR_PDFFixture(t *testing.T) {
	fixture := filepath.Join("..", "..", "testdata", "invoice.pdf")
	if _, err := os.Stat(fixture); os.IsNotExist(err) {
		t.Skip("test fixture not found")
	}
	ocr := &fakeOCR{}
	if _, err := NewOCR(ocr, nil).Convert(context.Background(), fixture); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if ocr.mime != "application/pdf" {
		t.Errorf("mime = %q", ocr.mime)
	}
}

func TestBatch(t *testing.T) {
	src, dst := t.TempDir(), filepath.Join(t.TempDir(), "outputs")
	writeFile(t, src, "a.md", "# A")
	writeFile(t, src, "b.txt", "")
	writeFile(t, src, "c.docx", "ignored")
	writeFile(t, src, "d.html", "<p>D</p>")

	results, err := Batch(context.Background(), NewRouter(RouterConfig{}), src, dst, nil)
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %+v, want 3 (docx skipped)", results)
	}
	if results[0].Error != "" || results[2].Error != "" {
		t.Errorf("results = %+v", results)
	}
	if results[1].Error == "" || results[1].Output != "" {
		t.Errorf("empty file result = %+v, want error", results[1])
	}

	got, err := os.ReadFile(filepath.Join(dst, "d.md"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if strings.TrimSpace(string(got)) != "D" {
		t.Errorf("d.md = %q", got)
	}
	if _, err := os.Stat(filepath.Join(dst, "b.md")); !os.IsNotExist(err) {
		t.Error("failed conversion should not write an output file")
	}
}
