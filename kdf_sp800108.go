// kdf_sp800108.go: SP800-108 counter, feedback and double-pipeline KDFs
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package themis

import (
	"fmt"
)

// CounterLocation places the counter in the PRF input of the feedback and
// double-pipeline modes.
type CounterLocation int

const (
	// CounterBeforeIteration: counter ‖ chaining ‖ fixed
	CounterBeforeIteration CounterLocation = iota + 1
	// CounterAfterIteration: chaining ‖ counter ‖ fixed
	CounterAfterIteration
	// CounterAfterFixed: chaining ‖ fixed ‖ counter
	CounterAfterFixed
)

// String returns the lower-case name of the location.
func (l CounterLocation) String() string {
	switch l {
	case CounterBeforeIteration:
		return "before-iteration"
	case CounterAfterIteration:
		return "after-iteration"
	case CounterAfterFixed:
		return "after-fixed"
	default:
		return fmt.Sprintf("CounterLocation(%d)", int(l))
	}
}

func (l CounterLocation) valid() bool {
	return l >= CounterBeforeIteration && l <= CounterAfterFixed
}

// maxBlocksNoCounter bounds the feedback and pipeline modes when no counter
// is configured.
const maxBlocksNoCounter = 1<<32 - 1

func validCounterBits(r int, optional bool) bool {
	switch r {
	case 8, 16, 24, 32:
		return true
	case 0:
		return optional
	}
	return false
}

func counterBlocks(r int) uint64 {
	if r == 0 {
		return maxBlocksNoCounter
	}
	return 1<<uint(r) - 1
}

// CounterParameters configures the counter mode KDF:
//
//	K(i) = PRF(KI, FixedInputPrefix ‖ [i]_r ‖ FixedInputSuffix)
type CounterParameters struct {
	PRF              PRF
	KI               []byte
	FixedInputPrefix []byte
	FixedInputSuffix []byte
	R                int // counter length in bits: 8, 16, 24 or 32
}

// Identity returns {SP800-108-Counter, PRF}.
func (p *CounterParameters) Identity() AlgorithmIdentity {
	return NewIdentity(FamilyKDFCounter, string(p.PRF))
}

// Validate checks the PRF, the counter length and the key size of KI.
func (p *CounterParameters) Validate() error {
	id := p.Identity()
	if !p.PRF.valid() {
		return unsupportedPRF(p.PRF)
	}
	if len(p.KI) == 0 {
		return invalidParameter(id, "KI must not be empty")
	}
	if err := p.PRF.checkKeySize(len(p.KI)); err != nil {
		return err
	}
	if !validCounterBits(p.R, false) {
		return invalidParameter(id, fmt.Sprintf("counter length %d not one of 8, 16, 24, 32", p.R))
	}
	return nil
}

// Destroy zeroes KI.
func (p *CounterParameters) Destroy() {
	Zeroize(p.KI)
}

func (p *CounterParameters) newGenerator(ep EngineProvider) (blockGenerator, error) {
	prf, err := newKeyedPRF(ep, p.PRF, p.KI)
	if err != nil {
		return nil, err
	}
	blocks := counterBlocks(p.R)
	return &counterGenerator{
		prf:    prf,
		prefix: cloneBytes(p.FixedInputPrefix),
		suffix: cloneBytes(p.FixedInputSuffix),
		ctr:    make([]byte, p.R/8),
		limit:  blockLimit(blocks, prf.size()),
	}, nil
}

type counterGenerator struct {
	prf            *keyedPRF
	prefix, suffix []byte
	ctr            []byte
	i              uint64
	limit          uint64
}

func (g *counterGenerator) next() ([]byte, error) {
	g.i++
	encodeCounter(g.ctr, g.i)
	return g.prf.sum(nil, g.prefix, g.ctr, g.suffix), nil
}

func (g *counterGenerator) maxOutput() uint64 { return g.limit }

func (g *counterGenerator) destroy() {
	g.prf = nil
}

// FeedbackParameters configures the feedback mode KDF:
//
//	K(0) = IV
//	K(i) = PRF(KI, K(i-1) {‖ [i]_r} ‖ FixedInput)
//
// R == 0 omits the counter. Location is required when R > 0.
type FeedbackParameters struct {
	PRF        PRF
	KI         []byte
	IV         []byte
	FixedInput []byte
	R          int
	Location   CounterLocation
}

// Identity returns {SP800-108-Feedback, PRF}.
func (p *FeedbackParameters) Identity() AlgorithmIdentity {
	return NewIdentity(FamilyKDFFeedback, string(p.PRF))
}

// Validate checks the PRF, the counter settings and the key size of KI.
func (p *FeedbackParameters) Validate() error {
	id := p.Identity()
	if !p.PRF.valid() {
		return unsupportedPRF(p.PRF)
	}
	if len(p.KI) == 0 {
		return invalidParameter(id, "KI must not be empty")
	}
	if err := p.PRF.checkKeySize(len(p.KI)); err != nil {
		return err
	}
	if !validCounterBits(p.R, true) {
		return invalidParameter(id, fmt.Sprintf("counter length %d not one of 0, 8, 16, 24, 32", p.R))
	}
	if p.R > 0 && !p.Location.valid() {
		return invalidParameter(id, "counter location required when a counter is configured")
	}
	return nil
}

// Destroy zeroes KI.
func (p *FeedbackParameters) Destroy() {
	Zeroize(p.KI)
}

func (p *FeedbackParameters) newGenerator(ep EngineProvider) (blockGenerator, error) {
	prf, err := newKeyedPRF(ep, p.PRF, p.KI)
	if err != nil {
		return nil, err
	}
	g := &feedbackGenerator{
		prf:   prf,
		k:     cloneBytes(p.IV),
		fixed: cloneBytes(p.FixedInput),
		loc:   p.Location,
		limit: blockLimit(counterBlocks(p.R), prf.size()),
	}
	if p.R > 0 {
		g.ctr = make([]byte, p.R/8)
	}
	return g, nil
}

type feedbackGenerator struct {
	prf   *keyedPRF
	k     []byte // chaining value
	fixed []byte
	ctr   []byte // nil without counter
	loc   CounterLocation
	i     uint64
	limit uint64
}

func (g *feedbackGenerator) next() ([]byte, error) {
	g.i++
	if g.ctr != nil {
		encodeCounter(g.ctr, g.i)
	}
	out := iterate(g.prf, g.loc, g.k, g.ctr, g.fixed)
	Zeroize(g.k)
	g.k = out
	block := make([]byte, len(out))
	copy(block, out)
	return block, nil
}

func (g *feedbackGenerator) maxOutput() uint64 { return g.limit }

func (g *feedbackGenerator) destroy() {
	Zeroize(g.k)
	g.k = nil
	g.prf = nil
}

// DoublePipelineParameters configures the double-pipeline iteration KDF:
//
//	A(0) = FixedInput
//	A(i) = PRF(KI, A(i-1))
//	K(i) = PRF(KI, A(i) {‖ [i]_r} ‖ FixedInput)
type DoublePipelineParameters struct {
	PRF        PRF
	KI         []byte
	FixedInput []byte
	R          int
	Location   CounterLocation
}

// Identity returns {SP800-108-DoublePipeline, PRF}.
func (p *DoublePipelineParameters) Identity() AlgorithmIdentity {
	return NewIdentity(FamilyKDFDoublePipeline, string(p.PRF))
}

// Validate checks the PRF, the counter settings and the key size of KI.
func (p *DoublePipelineParameters) Validate() error {
	id := p.Identity()
	if !p.PRF.valid() {
		return unsupportedPRF(p.PRF)
	}
	if len(p.KI) == 0 {
		return invalidParameter(id, "KI must not be empty")
	}
	if err := p.PRF.checkKeySize(len(p.KI)); err != nil {
		return err
	}
	if !validCounterBits(p.R, true) {
		return invalidParameter(id, fmt.Sprintf("counter length %d not one of 0, 8, 16, 24, 32", p.R))
	}
	if p.R > 0 && !p.Location.valid() {
		return invalidParameter(id, "counter location required when a counter is configured")
	}
	return nil
}

// Destroy zeroes KI.
func (p *DoublePipelineParameters) Destroy() {
	Zeroize(p.KI)
}

func (p *DoublePipelineParameters) newGenerator(ep EngineProvider) (blockGenerator, error) {
	prf, err := newKeyedPRF(ep, p.PRF, p.KI)
	if err != nil {
		return nil, err
	}
	g := &pipelineGenerator{
		prf:   prf,
		a:     cloneBytes(p.FixedInput),
		fixed: cloneBytes(p.FixedInput),
		loc:   p.Location,
		limit: blockLimit(counterBlocks(p.R), prf.size()),
	}
	if p.R > 0 {
		g.ctr = make([]byte, p.R/8)
	}
	return g, nil
}

type pipelineGenerator struct {
	prf   *keyedPRF
	a     []byte // pipeline value
	fixed []byte
	ctr   []byte
	loc   CounterLocation
	i     uint64
	limit uint64
}

func (g *pipelineGenerator) next() ([]byte, error) {
	g.i++
	if g.ctr != nil {
		encodeCounter(g.ctr, g.i)
	}
	a := g.prf.sum(nil, g.a)
	Zeroize(g.a)
	g.a = a
	return iterate(g.prf, g.loc, g.a, g.ctr, g.fixed), nil
}

func (g *pipelineGenerator) maxOutput() uint64 { return g.limit }

func (g *pipelineGenerator) destroy() {
	Zeroize(g.a)
	g.a = nil
	g.prf = nil
}

// iterate computes one feedback or pipeline block with the counter placed at
// loc. An empty ctr contributes nothing.
func iterate(prf *keyedPRF, loc CounterLocation, chain, ctr, fixed []byte) []byte {
	switch loc {
	case CounterBeforeIteration:
		return prf.sum(nil, ctr, chain, fixed)
	case CounterAfterFixed:
		return prf.sum(nil, chain, fixed, ctr)
	default:
		return prf.sum(nil, chain, ctr, fixed)
	}
}
