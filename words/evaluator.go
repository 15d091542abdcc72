// words/evaluator.go
//
// Word list management and guess evaluation. The engine consumes this
// through the Evaluator and Supplier interfaces so the word source can
// be swapped (files, embedded defaults, test fixtures).
package words

import (
	"bufio"
	"crypto/rand"
	_ "embed"
	"errors"
	"math/big"
	"os"
	"strings"
	"sync"
)

const (
	PatternAbsent  = '0'
	PatternPresent = '1'
	PatternCorrect = '2'
)

var (
	// ErrNotAllowed marks a candidate that is not a recognized word.
	ErrNotAllowed = errors.New("word not in allowed list")
	// ErrLengthMismatch marks a candidate of the wrong length.
	ErrLengthMismatch = errors.New("word length mismatch")
)

// Evaluator scores a candidate against a target word.
type Evaluator interface {
	// Evaluate returns one pattern character per letter position:
	// '0' absent, '1' present elsewhere, '2' correct.
	Evaluate(target, guess string) (string, error)
}

// Supplier hands out target words for a run, one at a time.
type Supplier interface {
	// Draw returns the next target, or false when no words remain.
	Draw() (string, bool)
}

//go:embed default_answers.txt
var embeddedAnswers string

//go:embed default_allowed.txt
var embeddedAllowed string

// List is a list-backed Evaluator and Supplier factory. Answers are the
// words a run draws from; the allowed set (answers included) is what a
// guess is validated against.
type List struct {
	wordLength int
	answers    []string
	allowedSet map[string]struct{}
}

// NewList loads word lists from the given files. Empty paths fall back
// to the embedded defaults. All words are normalized to lowercase and
// filtered to wordLength alphabetic letters.
func NewList(answersFile, allowedFile string, wordLength int) (*List, error) {
	var answers, allowed []string
	var err error

	if answersFile != "" {
		answers, err = readWordFile(answersFile, wordLength)
		if err != nil {
			return nil, err
		}
	} else {
		answers = normalizeLines(embeddedAnswers, wordLength)
	}

	if allowedFile != "" {
		allowed, err = readWordFile(allowedFile, wordLength)
		if err != nil {
			return nil, err
		}
	} else {
		allowed = normalizeLines(embeddedAllowed, wordLength)
	}

	if len(answers) == 0 {
		return nil, errors.New("words: answers list is empty")
	}

	set := make(map[string]struct{}, len(answers)+len(allowed))
	for _, w := range answers {
		set[w] = struct{}{}
	}
	for _, w := range allowed {
		set[w] = struct{}{}
	}

	return &List{wordLength: wordLength, answers: answers, allowedSet: set}, nil
}

// NewListFromWords builds a List directly from slices. Test fixtures
// and the rematch path use this to pin deterministic words.
func NewListFromWords(answers, allowed []string, wordLength int) *List {
	norm := make([]string, len(answers))
	set := make(map[string]struct{}, len(answers)+len(allowed))
	for i, w := range answers {
		norm[i] = strings.ToLower(w)
		set[norm[i]] = struct{}{}
	}
	for _, w := range allowed {
		set[strings.ToLower(w)] = struct{}{}
	}
	return &List{wordLength: wordLength, answers: norm, allowedSet: set}
}

// WordLength returns the fixed letter count for this list.
func (l *List) WordLength() int {
	return l.wordLength
}

// Evaluate implements the classic two-pass scoring. The first pass
// marks exact matches and counts the remaining target letters; the
// second resolves present/absent so repeated letters behave correctly.
func (l *List) Evaluate(target, guess string) (string, error) {
	guess = strings.ToLower(strings.TrimSpace(guess))
	if len(guess) != len(target) {
		return "", ErrLengthMismatch
	}
	if _, ok := l.allowedSet[guess]; !ok {
		return "", ErrNotAllowed
	}

	n := len(guess)
	pattern := make([]byte, n)
	var counts [26]int

	for i := 0; i < n; i++ {
		if guess[i] == target[i] {
			pattern[i] = PatternCorrect
		} else if target[i] >= 'a' && target[i] <= 'z' {
			counts[target[i]-'a']++
		}
	}

	for i := 0; i < n; i++ {
		if pattern[i] == PatternCorrect {
			continue
		}
		if guess[i] >= 'a' && guess[i] <= 'z' && counts[guess[i]-'a'] > 0 {
			pattern[i] = PatternPresent
			counts[guess[i]-'a']--
		} else {
			pattern[i] = PatternAbsent
		}
	}

	return string(pattern), nil
}

// NewSupplier returns a Supplier that draws answers in random order
// without repetition.
func (l *List) NewSupplier() Supplier {
	order := make([]string, len(l.answers))
	copy(order, l.answers)
	shuffle(order)
	return &listSupplier{words: order}
}

type listSupplier struct {
	mu    sync.Mutex
	words []string
	next  int
}

func (s *listSupplier) Draw() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.words) {
		return "", false
	}
	w := s.words[s.next]
	s.next++
	return w, true
}

// AllCorrect reports whether a pattern marks every position correct.
func AllCorrect(pattern string) bool {
	if pattern == "" {
		return false
	}
	for i := 0; i < len(pattern); i++ {
		if pattern[i] != PatternCorrect {
			return false
		}
	}
	return true
}

func readWordFile(path string, wordLength int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if w, ok := normalizeWord(sc.Text(), wordLength); ok {
			out = append(out, w)
		}
	}
	return out, sc.Err()
}

func normalizeLines(s string, wordLength int) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if w, ok := normalizeWord(line, wordLength); ok {
			out = append(out, w)
		}
	}
	return out
}

func normalizeWord(s string, wordLength int) (string, bool) {
	w := strings.TrimSpace(strings.ToLower(s))
	if len(w) != wordLength || !isAlpha(w) {
		return "", false
	}
	return w, true
}

func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}

func shuffle(words []string) {
	for i := len(words) - 1; i > 0; i-- {
		nBig, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			continue
		}
		j := nBig.Int64()
		words[i], words[j] = words[j], words[i]
	}
}
