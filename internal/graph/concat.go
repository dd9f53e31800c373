package graph

import "github.com/stylesheet-video/compiler/internal/compileerr"

// FactorConcat chooses (n, v, a) for a flat, ordered label list built
// from n segments of v video labels followed by a audio labels each
// (ffmpeg's required concat input layout), maximizing n (spec §4.6,
// §8 property 7). It is a hard error on an empty list (spec §4.6) or
// on a list that cannot be partitioned this way.
func FactorConcat(labels []Label) (n, v, a int, err error) {
	total := len(labels)
	if total == 0 {
		return 0, 0, 0, compileerr.InvalidFilterInputs("concat", "no inputs supplied")
	}

	for candidateN := total; candidateN >= 1; candidateN-- {
		if total%candidateN != 0 {
			continue
		}
		blockSize := total / candidateN
		cv, ca, ok := blockPattern(labels[:blockSize])
		if !ok {
			continue
		}
		if allBlocksMatch(labels, candidateN, blockSize, cv, ca) {
			return candidateN, cv, ca, nil
		}
	}
	return 0, 0, 0, compileerr.InvalidFilterInputs("concat", "inputs do not factor into consistent v/a segments")
}

// blockPattern reports whether block is "some video labels then some
// audio labels" and, if so, how many of each.
func blockPattern(block []Label) (v, a int, ok bool) {
	i := 0
	for i < len(block) && !block[i].IsAudio {
		i++
	}
	v = i
	for i < len(block) {
		if !block[i].IsAudio {
			return 0, 0, false
		}
		i++
	}
	a = len(block) - v
	return v, a, true
}

func allBlocksMatch(labels []Label, n, blockSize, v, a int) bool {
	for seg := 0; seg < n; seg++ {
		block := labels[seg*blockSize : (seg+1)*blockSize]
		bv, ba, ok := blockPattern(block)
		if !ok || bv != v || ba != a {
			return false
		}
	}
	return true
}
