package agent

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"claimflow/internal/jsonpath"
	"claimflow/internal/placeholder"
	"claimflow/internal/workflowconfig"
)

const txnLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// PayloadBuilder assembles the "data" object of an agent request.
type PayloadBuilder struct {
	Now     func() time.Time
	NewID   func() string
	NewTxID func() string
}

// NewPayloadBuilder returns a builder using wall-clock time and random ids.
func NewPayloadBuilder() *PayloadBuilder {
	return &PayloadBuilder{
		Now:     time.Now,
		NewID:   func() string { return uuid.New().String() },
		NewTxID: TransactionID,
	}
}

// TransactionID returns one random uppercase letter followed by 12 digits.
func TransactionID() string {
	var b strings.Builder
	b.Grow(13)
	b.WriteByte(txnLetters[rand.IntN(len(txnLetters))])
	for i := 0; i < 12; i++ {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}

// Build merges static fields, generated dynamic fields and the variable mapping
// into one object. Later sources override earlier ones. Variable mapping
// targets are dotted paths; sources are either a variable name or a ${...}
// template. Unset variables are skipped.
func (b *PayloadBuilder) Build(in workflowconfig.InputMapping, vars placeholder.VariableSource, props placeholder.PropertySource) (map[string]any, error) {
	data := make(map[string]any, len(in.StaticFields)+len(in.DynamicFields)+len(in.VariableMapping))

	for k, v := range in.StaticFields {
		data[k] = placeholder.ResolveValue(jsonpath.DeepCopy(v), vars, props)
	}

	for k, kind := range in.DynamicFields {
		v, err := b.dynamic(kind)
		if err != nil {
			return nil, fmt.Errorf("dynamic field %q: %w", k, err)
		}
		data[k] = v
	}

	targets := make([]string, 0, len(in.VariableMapping))
	for target := range in.VariableMapping {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	for _, target := range targets {
		source := in.VariableMapping[target]
		var value any
		if placeholder.IsTemplate(source) {
			value = placeholder.Resolve(source, vars, props)
		} else {
			if vars == nil {
				continue
			}
			v, ok := vars.Lookup(strings.TrimSpace(source))
			if !ok {
				zap.L().Warn("agent.Build: mapped variable not set",
					zap.String("target", target), zap.String("variable", source))
				continue
			}
			value = jsonpath.DeepCopy(v)
		}
		if err := jsonpath.SetDotted(data, target, value); err != nil {
			return nil, fmt.Errorf("variable mapping: %w", err)
		}
	}
	return data, nil
}

func (b *PayloadBuilder) dynamic(kind workflowconfig.DynamicField) (string, error) {
	switch kind {
	case workflowconfig.DynamicUUID:
		return b.NewID(), nil
	case workflowconfig.DynamicTimestamp:
		return b.Now().UTC().Format(time.RFC3339), nil
	case workflowconfig.DynamicTransactionID:
		return b.NewTxID(), nil
	default:
		return "", fmt.Errorf("unknown generator %q", kind)
	}
}
