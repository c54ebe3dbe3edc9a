package extract

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

// fakeFetcher serves canned documents keyed by URL.
type fakeFetcher struct {
	mu    sync.Mutex
	text  map[string]string
	bin   map[string][]byte
	fail  map[string]error
	calls []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		text: map[string]string{},
		bin:  map[string][]byte{},
		fail: map[string]error{},
	}
}

func (f *fakeFetcher) record(kind, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, kind+" "+url)
	return f.fail[url]
}

func (f *fakeFetcher) FetchText(_ context.Context, url string) (string, error) {
	if err := f.record("text", url); err != nil {
		return "", err
	}
	return f.text[url], nil
}

func (f *fakeFetcher) FetchBytes(_ context.Context, url string) ([]byte, error) {
	if err := f.record("bytes", url); err != nil {
		return nil, err
	}
	return f.bin[url], nil
}

func (f *fakeFetcher) FetchHeaderOnly(_ context.Context, url string) (string, error) {
	if err := f.record("header", url); err != nil {
		return "", err
	}
	txt := f.text[url]
	if i := strings.Index(txt, "</SEC-HEADER>"); i >= 0 {
		return txt[:i+len("</SEC-HEADER>")], nil
	}
	return txt, nil
}

func (f *fakeFetcher) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// fakeOCR returns fixed text, or an error when err is set.
type fakeOCR struct {
	text string
	err  error
}

func (o fakeOCR) ExtractText(context.Context, []byte) (string, error) {
	if o.err != nil {
		return "", o.err
	}
	return o.text, nil
}

var errUnavailable = eris.New("http 503: service unavailable")
