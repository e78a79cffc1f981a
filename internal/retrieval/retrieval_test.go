package retrieval

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/teamcheckmate/chaekcheck/internal/knowledge"
)

// fakeStore satisfies knowledge.Store with canned results.
type fakeStore struct {
	chunks []knowledge.Chunk
	err    error
	lastK  int
}

func (f *fakeStore) Add(context.Context, []knowledge.Chunk) error { return nil }

func (f *fakeStore) Search(_ context.Context, _ string, k int) ([]knowledge.Chunk, error) {
	f.lastK = k
	return f.chunks, f.err
}

func (f *fakeStore) Count(context.Context) (int64, error) {
	return int64(len(f.chunks)), nil
}

// fakeCompleter returns a fixed expansion response.
type fakeCompleter struct {
	response string
	err      error
	calls    int
}

func (f *fakeCompleter) Complete(context.Context, string) (string, error) {
	f.calls++
	return f.response, f.err
}

// recordingSearcher collects every query it is asked to run.
type recordingSearcher struct {
	mu      sync.Mutex
	queries []string
	results map[string][]knowledge.Chunk
	err     error
}

func (r *recordingSearcher) Search(_ context.Context, query string) ([]knowledge.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	if r.err != nil {
		return nil, r.err
	}
	return r.results[query], nil
}

func (r *recordingSearcher) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.queries))
	copy(out, r.queries)
	sort.Strings(out)
	return out
}

func TestRetrieverSearch(t *testing.T) {
	t.Parallel()

	store := &fakeStore{chunks: []knowledge.Chunk{
		{Content: "제18조", Source: "a.pdf", Page: 4, Score: 0.92},
		{Content: "제19조", Source: "a.pdf", Page: 5, Score: 0.87},
	}}

	r, err := NewRetriever(store, 2, nil)
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	got, err := r.Search(context.Background(), "우선지명")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Search() returned %d chunks, want 2", len(got))
	}
	if store.lastK != 2 {
		t.Errorf("store queried with k=%d, want 2", store.lastK)
	}
}

func TestRetrieverValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewRetriever(nil, 2, nil); err == nil {
		t.Error("NewRetriever(nil store) = nil error")
	}
	if _, err := NewRetriever(&fakeStore{}, 0, nil); err == nil {
		t.Error("NewRetriever(topK=0) = nil error")
	}
}

func TestMultiQueryExpandParsing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{
			"plain lines",
			"유소년 선수 연령 기준\n우선지명 대상 연령",
			[]string{"원질문", "유소년 선수 연령 기준", "우선지명 대상 연령"},
		},
		{
			"numbered with dot",
			"1. 유소년 선수 연령 기준\n2. 우선지명 대상 연령",
			[]string{"원질문", "유소년 선수 연령 기준", "우선지명 대상 연령"},
		},
		{
			"numbered with paren",
			"1) 첫째 질의\n2) 둘째 질의",
			[]string{"원질문", "첫째 질의", "둘째 질의"},
		},
		{
			"blank lines and duplicates of original",
			"\n원질문\n\n다른 질의\n",
			[]string{"원질문", "다른 질의"},
		},
		{
			"empty output falls back to original",
			"",
			[]string{"원질문"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mq, err := NewMultiQuery(&recordingSearcher{}, &fakeCompleter{response: tt.response}, 3, true, nil)
			if err != nil {
				t.Fatalf("NewMultiQuery() error = %v", err)
			}

			got, err := mq.expand(context.Background(), "원질문")
			if err != nil {
				t.Fatalf("expand() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expand() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMultiQueryExpandCapsQueries(t *testing.T) {
	t.Parallel()

	var lines string
	for i := 0; i < 10; i++ {
		lines += fmt.Sprintf("질의 %d\n", i)
	}

	mq, err := NewMultiQuery(&recordingSearcher{}, &fakeCompleter{response: lines}, 3, true, nil)
	if err != nil {
		t.Fatalf("NewMultiQuery() error = %v", err)
	}

	got, err := mq.expand(context.Background(), "원질문")
	if err != nil {
		t.Fatalf("expand() error = %v", err)
	}
	if len(got) != 4 { // original + expansions
		t.Errorf("expand() returned %d queries, want 4", len(got))
	}
}

func TestMultiQuerySearchUnionsAndDedupes(t *testing.T) {
	t.Parallel()

	shared := knowledge.Chunk{Content: "공통 조항", Source: "a.pdf", Page: 1}
	inner := &recordingSearcher{results: map[string][]knowledge.Chunk{
		"원질문":  {shared, {Content: "조항 A", Source: "a.pdf", Page: 2}},
		"질의 하나": {shared, {Content: "조항 B", Source: "b.pdf", Page: 3}},
	}}

	mq, err := NewMultiQuery(inner, &fakeCompleter{response: "질의 하나"}, 3, true, nil)
	if err != nil {
		t.Fatalf("NewMultiQuery() error = %v", err)
	}

	got, err := mq.Search(context.Background(), "원질문")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Search() returned %d chunks after dedup, want 3: %+v", len(got), got)
	}

	want := []string{"원질문", "질의 하나"}
	if got := inner.seen(); !reflect.DeepEqual(got, want) {
		t.Errorf("queries run = %v, want %v", got, want)
	}
}

func TestMultiQueryDegradesOnExpansionFailure(t *testing.T) {
	t.Parallel()

	inner := &recordingSearcher{results: map[string][]knowledge.Chunk{
		"원질문": {{Content: "조항", Source: "a.pdf", Page: 1}},
	}}
	completer := &fakeCompleter{err: errors.New("model unavailable")}

	mq, err := NewMultiQuery(inner, completer, 3, true, nil)
	if err != nil {
		t.Fatalf("NewMultiQuery() error = %v", err)
	}

	got, err := mq.Search(context.Background(), "원질문")
	if err != nil {
		t.Fatalf("Search() error = %v, want degraded success", err)
	}
	if len(got) != 1 {
		t.Errorf("Search() returned %d chunks, want 1", len(got))
	}
	if seen := inner.seen(); !reflect.DeepEqual(seen, []string{"원질문"}) {
		t.Errorf("queries run = %v, want only the original", seen)
	}
}

func TestMultiQueryAllSearchesFail(t *testing.T) {
	t.Parallel()

	inner := &recordingSearcher{err: errors.New("index down")}
	mq, err := NewMultiQuery(inner, &fakeCompleter{response: "질의"}, 2, true, nil)
	if err != nil {
		t.Fatalf("NewMultiQuery() error = %v", err)
	}

	if _, err := mq.Search(context.Background(), "원질문"); err == nil {
		t.Error("Search() = nil error when every sub-search failed")
	}
}

func TestDedupeChunks(t *testing.T) {
	t.Parallel()

	chunks := []knowledge.Chunk{
		{Content: "가", Source: "a.pdf", Page: 1},
		{Content: "가", Source: "a.pdf", Page: 1, Score: 0.5}, // same identity, different score
		{Content: "가", Source: "a.pdf", Page: 2},
		{Content: "나", Source: "a.pdf", Page: 1},
	}

	got := dedupeChunks(chunks)
	if len(got) != 3 {
		t.Errorf("dedupeChunks() returned %d chunks, want 3", len(got))
	}
	if got[0].Score != 0 {
		t.Error("dedupeChunks() did not keep the first occurrence")
	}
}
