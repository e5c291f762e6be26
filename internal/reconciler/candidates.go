package reconciler

import (
	"sort"
	"sync"

	"k8s.io/apimachinery/pkg/types"

	"github.com/headwind-sh/headwind/internal/workload"
)

// CandidateStore holds the versions announced for each workload until its
// reconciler has acted on them. Per repository only the latest announcement
// is kept.
type CandidateStore struct {
	mu         sync.Mutex
	candidates map[types.NamespacedName]map[string]workload.Candidate

	// handled records chart drifts already acted on, keyed by workload,
	// chart and version, so that a release awaiting its next deploy is not
	// proposed or applied again on every watch event.
	handled map[types.NamespacedName]map[string]string
}

// NewCandidateStore creates an empty store.
func NewCandidateStore() *CandidateStore {
	return &CandidateStore{
		candidates: make(map[types.NamespacedName]map[string]workload.Candidate),
		handled:    make(map[types.NamespacedName]map[string]string),
	}
}

// Add records cand for key, replacing any earlier candidate for the same
// repository.
func (s *CandidateStore) Add(key types.NamespacedName, cand workload.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byRepo, ok := s.candidates[key]
	if !ok {
		byRepo = make(map[string]workload.Candidate)
		s.candidates[key] = byRepo
	}
	byRepo[cand.Repository] = cand
}

// Pending returns the candidates of key ordered by repository.
func (s *CandidateStore) Pending(key types.NamespacedName) []workload.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()

	byRepo := s.candidates[key]
	out := make([]workload.Candidate, 0, len(byRepo))
	for _, cand := range byRepo {
		out = append(out, cand)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Repository < out[j].Repository })
	return out
}

// Consume removes the candidate for repository if it still offers tag. A
// newer announcement that arrived meanwhile is kept.
func (s *CandidateStore) Consume(key types.NamespacedName, repository, tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byRepo := s.candidates[key]
	if cand, ok := byRepo[repository]; ok && cand.Tag == tag {
		delete(byRepo, repository)
	}
	if len(byRepo) == 0 {
		delete(s.candidates, key)
	}
}

// Forget drops everything recorded for key.
func (s *CandidateStore) Forget(key types.NamespacedName) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.candidates, key)
	delete(s.handled, key)
}

// MarkHandled records that the drift of key to version of repository has
// been acted on.
func (s *CandidateStore) MarkHandled(key types.NamespacedName, repository, version string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byRepo, ok := s.handled[key]
	if !ok {
		byRepo = make(map[string]string)
		s.handled[key] = byRepo
	}
	byRepo[repository] = version
}

// Handled reports whether MarkHandled was called for exactly this version.
func (s *CandidateStore) Handled(key types.NamespacedName, repository, version string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.handled[key][repository]
	return ok && v == version
}

// Len returns the number of workloads with pending candidates.
func (s *CandidateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.candidates)
}
