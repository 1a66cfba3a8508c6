package logger

import (
	"strconv"
	"strings"
	"sync"
)

// ratioSampler passes num out of every den events and suppresses the rest.
// A zero ratio means sampling is off and everything passes.
type ratioSampler struct {
	mu   sync.Mutex
	num  int
	den  int
	seen int
}

func newRatioSampler(num, den int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(num, den)
	return s
}

func (s *ratioSampler) Set(num, den int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if num <= 0 || den <= 0 {
		s.num, s.den, s.seen = 0, 0, 0
		return
	}
	if num > den {
		num = den
	}
	s.num, s.den, s.seen = num, den, 0
}

func (s *ratioSampler) Allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.num <= 0 || s.den <= 0 {
		return true
	}
	s.seen++
	if s.seen > s.den {
		s.seen = 1
	}
	return s.seen <= s.num
}

// parseRatioSpec understands "N/M" and the shorthand "M" meaning 1/M.
// Anything unparseable disables sampling.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, 0
	}
	if numStr, denStr, ok := strings.Cut(spec, "/"); ok {
		num, errN := strconv.Atoi(strings.TrimSpace(numStr))
		den, errD := strconv.Atoi(strings.TrimSpace(denStr))
		if errN == nil && errD == nil {
			return num, den
		}
		return 0, 0
	}
	if m, err := strconv.Atoi(spec); err == nil && m > 0 {
		return 1, m
	}
	return 0, 0
}
