package placeholder_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"claimflow/internal/placeholder"
)

func testVars() placeholder.Vars {
	return placeholder.Vars{
		"ticketId":   "CLM000042",
		"amount":     float64(1200),
		"fileName":   "bill.pdf",
		"docTypes":   map[string]any{"bill.pdf": "Invoice", "id.png": "IdCard"},
		"jsonMap":    `{"bill.pdf":"FromJSON"}`,
		"answer":     map[string]any{"ok": true},
		"missingKey": "nope.pdf",
	}
}

func testProps() placeholder.Properties {
	return placeholder.Properties{"agent.baseUrl": "https://agents.internal"}
}

func TestResolve_Forms(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"no tokens", "plain text", "plain text"},
		{"property", "${appproperties.agent.baseUrl}/invoke", "https://agents.internal/invoke"},
		{"missing property is empty", "[${appproperties.nope}]", "[]"},
		{"variable", "ticket ${ticketId}", "ticket CLM000042"},
		{"processVariable prefix", "${processVariable.ticketId}", "CLM000042"},
		{"number variable", "${amount}", "1200"},
		{"object variable", "${answer}", `{"ok":true}`},
		{"indexed map", "${docTypes[fileName]}", "Invoice"},
		{"indexed json string map", "${jsonMap[fileName]}", "FromJSON"},
		{"multiple tokens", "${ticketId}-${fileName}-${amount}", "CLM000042-bill.pdf-1200"},
		{"unclosed token", "x ${ticketId", "x ${ticketId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := placeholder.Resolve(tt.template, testVars(), testProps())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_ResolvableTemplateLeavesNoTokens(t *testing.T) {
	got := placeholder.Resolve("${ticketId}/${docTypes[fileName]}/${appproperties.agent.baseUrl}", testVars(), testProps())
	assert.NotContains(t, got, "${")
}

func TestResolve_UnresolvedVariableKeepsToken(t *testing.T) {
	got := placeholder.Resolve("value=${unknownVar}", testVars(), testProps())
	assert.Equal(t, "value=${unknownVar}", got)
}

func TestResolve_IndexedFailuresKeepToken(t *testing.T) {
	tests := []string{
		"${docTypes[missingKey]}",
		"${docTypes[noSuchVar]}",
		"${ticketId[fileName]}",
		"${noMap[fileName]}",
	}
	for _, tmpl := range tests {
		got := placeholder.Resolve(tmpl, testVars(), testProps())
		assert.Equal(t, tmpl, got)
	}
}

func TestResolve_IsNotRecursive(t *testing.T) {
	vars := placeholder.Vars{"a": "${b}", "b": "deep"}
	got := placeholder.Resolve("${a}", vars, nil)
	assert.Equal(t, "${b}", got)
}

func TestResolve_NilSources(t *testing.T) {
	assert.Equal(t, "${x}", placeholder.Resolve("${x}", nil, nil))
	assert.Equal(t, "", placeholder.Resolve("${appproperties.x}", nil, nil))
}

func TestResolveValue_WalksTree(t *testing.T) {
	tmpl := map[string]any{
		"ticket": "${ticketId}",
		"nested": []any{"${fileName}", float64(3)},
		"flag":   true,
	}
	got := placeholder.ResolveValue(tmpl, testVars(), testProps()).(map[string]any)
	assert.Equal(t, "CLM000042", got["ticket"])
	assert.Equal(t, []any{"bill.pdf", float64(3)}, got["nested"])
	assert.Equal(t, true, got["flag"])
	assert.True(t, strings.HasPrefix(tmpl["ticket"].(string), "${"))
}

func TestResolveTyped(t *testing.T) {
	vars := placeholder.Vars{
		"amount": float64(1500),
		"claim":  map[string]any{"id": "C-1"},
	}

	assert.Equal(t, float64(1500), placeholder.ResolveTyped("${amount}", vars, nil))
	assert.Equal(t, map[string]any{"id": "C-1"}, placeholder.ResolveTyped(" ${processVariable.claim} ", vars, nil))
	assert.Equal(t, "total 1500", placeholder.ResolveTyped("total ${amount}", vars, nil))
	assert.Equal(t, "${missing}", placeholder.ResolveTyped("${missing}", vars, nil))
}
