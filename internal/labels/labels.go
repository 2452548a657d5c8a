// Package labels maps categorical string features to integer codes.
//
// An Encoder is fitted on the distinct training values sorted ascending, so the
// first fitted label gets code 0. Codes never move once minted. Labels seen for
// the first time at prediction are handled by the encoder's Policy.
package labels

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Policy decides how an encoder treats a label it was not fitted on.
type Policy string

const (
	// PolicyExtend mints a fresh code for each unseen label.
	PolicyExtend Policy = "extend"
	// PolicyUnknown pools every unseen label under UnknownLabel.
	PolicyUnknown Policy = "unknown"
)

// UnknownLabel names the pooled class of PolicyUnknown in Classes and Decode.
// The pooled code is kept apart from the fitted labels, so a training value
// spelled the same still has its own code.
const UnknownLabel = "<unknown>"

// ParsePolicy validates a policy name. An empty name selects PolicyExtend.
func ParsePolicy(name string) (Policy, error) {
	switch Policy(name) {
	case "", PolicyExtend:
		return PolicyExtend, nil
	case PolicyUnknown:
		return PolicyUnknown, nil
	default:
		return "", fmt.Errorf("unsupported unseen label policy: %s (use extend or unknown)", name)
	}
}

// UnseenLabel records a label that was encoded after fitting.
type UnseenLabel struct {
	Label  string `json:"label"`
	Code   int    `json:"code"`
	Policy Policy `json:"policy"`
}

// Encoder is safe for concurrent use.
type Encoder struct {
	id     uuid.UUID
	policy Policy
	fitted int

	mu     sync.Mutex
	codes  map[string]int
	labels []string
	unseen []UnseenLabel
	pooled int
}

// Fit builds an encoder from training values. Duplicates are collapsed and the
// empty string is an ordinary label.
func Fit(values []string, policy Policy) *Encoder {
	if policy != PolicyUnknown {
		policy = PolicyExtend
	}

	distinct := slices.Clone(values)
	slices.Sort(distinct)
	distinct = slices.Compact(distinct)

	codes := make(map[string]int, len(distinct))
	for i, v := range distinct {
		codes[v] = i
	}

	return &Encoder{
		id:     uuid.New(),
		policy: policy,
		fitted: len(distinct),
		codes:  codes,
		labels: distinct,
		pooled: -1,
	}
}

// ID identifies the fitted encoder.
func (e *Encoder) ID() uuid.UUID {
	return e.id
}

// Policy returns the unseen label policy.
func (e *Encoder) Policy() Policy {
	return e.policy
}

// Classes returns every label with a code, in code order.
func (e *Encoder) Classes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.labels)
}

// FittedLen returns the number of labels seen at fit time.
func (e *Encoder) FittedLen() int {
	return e.fitted
}

// Encode returns the code for label. It never fails: a label that was not in
// the training values is resolved through the policy and applied is true.
func (e *Encoder) Encode(label string) (code int, applied bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if code, ok := e.codes[label]; ok {
		return code, false
	}

	if e.policy == PolicyUnknown {
		if e.pooled < 0 {
			e.pooled = len(e.labels)
			e.labels = append(e.labels, UnknownLabel)
		}
		code = e.pooled
	} else {
		code = len(e.labels)
		e.codes[label] = code
		e.labels = append(e.labels, label)
	}
	e.unseen = append(e.unseen, UnseenLabel{Label: label, Code: code, Policy: e.policy})

	return code, true
}

// Decode returns the label for a minted code.
func (e *Encoder) Decode(code int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if code < 0 || code >= len(e.labels) {
		return "", fmt.Errorf("code %d was never minted (have %d)", code, len(e.labels))
	}
	return e.labels[code], nil
}

// Unseen returns the labels encoded through the policy so far.
func (e *Encoder) Unseen() []UnseenLabel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.unseen)
}
