package prompt_test

import (
	"strings"
	"testing"

	"github.com/llmburst/llmburst/internal/prompt"
)

func TestCatalogHasBothFamilies(t *testing.T) {
	catalog := prompt.NewCatalog(1)
	families := map[prompt.Family]int{}
	for _, tmpl := range catalog.Templates() {
		families[tmpl.Family]++
		if tmpl.ContextFraction <= 0 || tmpl.ContextFraction > 1 {
			t.Errorf("%s: context fraction %v out of range", tmpl.Name, tmpl.ContextFraction)
		}
	}
	if families[prompt.FamilyMCP] != 3 || families[prompt.FamilyAgentic] != 3 {
		t.Fatalf("expected 3 templates per family, got %v", families)
	}
}

func TestPickCoversBothFamilies(t *testing.T) {
	catalog := prompt.NewCatalog(42)
	seen := map[prompt.Family]bool{}
	for i := 0; i < 200; i++ {
		seen[catalog.Pick().Family] = true
	}
	if !seen[prompt.FamilyMCP] || !seen[prompt.FamilyAgentic] {
		t.Fatalf("both families should appear over 200 picks, got %v", seen)
	}
}

func TestTargetTokensWithinBounds(t *testing.T) {
	catalog := prompt.NewCatalog(7)
	tmpl := catalog.Templates()[0]
	maxContext := 6000
	base := tmpl.ContextFraction * float64(maxContext)
	for i := 0; i < 100; i++ {
		target := catalog.TargetTokens(tmpl, maxContext)
		if float64(target) < 0.7*base-1 || float64(target) > base+1 {
			t.Fatalf("target %d outside [%.0f, %.0f]", target, 0.7*base, base)
		}
	}
}

func TestRenderPadsToTarget(t *testing.T) {
	catalog := prompt.NewCatalog(3)
	tmpl := catalog.Templates()[0]

	target := 4000
	text := tmpl.Render(target)
	got := prompt.EstimateTokens(text)
	if got < target {
		t.Fatalf("rendered prompt has %d estimated tokens, want >= %d", got, target)
	}
	// Padding should be roughly proportional, not wildly oversized.
	if got > target+100 {
		t.Fatalf("rendered prompt has %d estimated tokens, want close to %d", got, target)
	}
	if !strings.Contains(text, "Additional context:") {
		t.Fatal("padded prompt should carry the filler marker")
	}
}

func TestRenderSmallTargetKeepsBase(t *testing.T) {
	catalog := prompt.NewCatalog(3)
	tmpl := catalog.Templates()[0]
	text := tmpl.Render(1)
	if strings.Contains(text, "Additional context:") {
		t.Fatal("no padding expected when the base already exceeds the target")
	}
	if strings.Contains(text, "{context}") {
		t.Fatal("context placeholder should be substituted")
	}
}

func TestWorkloadTag(t *testing.T) {
	catalog := prompt.NewCatalog(1)
	for _, tmpl := range catalog.Templates() {
		tag := tmpl.Workload()
		if !strings.HasPrefix(tag, string(tmpl.Family)+"_") {
			t.Errorf("workload tag %q does not start with family prefix", tag)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := prompt.EstimateTokens("abcdefgh"); got != 2 {
		t.Fatalf("EstimateTokens = %d, want 2", got)
	}
	if got := prompt.EstimateTokens(""); got != 0 {
		t.Fatalf("EstimateTokens(\"\") = %d, want 0", got)
	}
}
