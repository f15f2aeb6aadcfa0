package semverx

import (
	"testing"

	"github.com/riverrun/depwatch/internal/ecosystem"
	"github.com/stretchr/testify/assert"
)

func TestVersionCompareShorterIsLess(t *testing.T) {
	assert.Equal(t, -1, ParseVersion("1.2").Compare(ParseVersion("1.2.0")))
	assert.Equal(t, 1, ParseVersion("1.2.0").Compare(ParseVersion("1.2")))
	assert.Equal(t, 0, ParseVersion("1.2.3").Compare(ParseVersion("1.2.3")))
}

func TestVersionCompareStripsMetadata(t *testing.T) {
	assert.Equal(t, 0, ParseVersion("1.2.3-beta.1").Compare(ParseVersion("1.2.3")))
	assert.Equal(t, 0, ParseVersion("1.2.3+build.5").Compare(ParseVersion("1.2.3")))
}

func TestVersionCompareNumeric(t *testing.T) {
	assert.Equal(t, -1, ParseVersion("1.9.0").Compare(ParseVersion("1.10.0")))
}

func TestPythonSpecReflexive(t *testing.T) {
	// a version always satisfies an exact-equal spec on itself.
	assert.True(t, Satisfies(ecosystem.Python, "1.2.3", "==1.2.3"))
}

func TestPythonSpecOperators(t *testing.T) {
	assert.True(t, Satisfies(ecosystem.Python, "2.31.0", ">=2.0.0"))
	assert.False(t, Satisfies(ecosystem.Python, "1.9.0", ">=2.0.0"))
	assert.True(t, Satisfies(ecosystem.Python, "1.9.0", "<2.0.0"))
	assert.False(t, Satisfies(ecosystem.Python, "2.0.0", "<2.0.0"))
}

func TestPythonSpecCompatibleRelease(t *testing.T) {
	assert.True(t, Satisfies(ecosystem.Python, "2.2.1", "~=2.2"))
	assert.True(t, Satisfies(ecosystem.Python, "2.9.9", "~=2.2"))
	assert.False(t, Satisfies(ecosystem.Python, "3.0.0", "~=2.2"))
	assert.True(t, Satisfies(ecosystem.Python, "2.2.5", "~=2.2.1"))
	assert.False(t, Satisfies(ecosystem.Python, "2.3.0", "~=2.2.1"))
	assert.False(t, Satisfies(ecosystem.Python, "2.2.0", "~=2.2.1"))
}

func TestPythonSpecUnknownOperatorDegradesToExactMatch(t *testing.T) {
	assert.True(t, Satisfies(ecosystem.Python, "1.2.3", "1.2.3"))
	assert.False(t, Satisfies(ecosystem.Python, "1.2.4", "1.2.3"))
}

func TestJSSpecReflexive(t *testing.T) {
	// a version always satisfies an exact-equal spec on itself.
	assert.True(t, Satisfies(ecosystem.JavaScript, "1.2.3", "1.2.3"))
}

func TestJSSpecCaret(t *testing.T) {
	assert.True(t, Satisfies(ecosystem.JavaScript, "1.4.0", "^1.2.3"))
	assert.True(t, Satisfies(ecosystem.JavaScript, "1.9.9", "^1.2.3"))
	assert.False(t, Satisfies(ecosystem.JavaScript, "2.0.0", "^1.2.3"))
	assert.False(t, Satisfies(ecosystem.JavaScript, "1.2.2", "^1.2.3"))

	// leading zero major: only the minor may move
	assert.True(t, Satisfies(ecosystem.JavaScript, "0.2.9", "^0.2.3"))
	assert.False(t, Satisfies(ecosystem.JavaScript, "0.3.0", "^0.2.3"))

	// leading zero major and minor: exact match only
	assert.True(t, Satisfies(ecosystem.JavaScript, "0.0.3", "^0.0.3"))
	assert.False(t, Satisfies(ecosystem.JavaScript, "0.0.4", "^0.0.3"))
}

func TestJSSpecTilde(t *testing.T) {
	assert.True(t, Satisfies(ecosystem.JavaScript, "1.2.9", "~1.2.3"))
	assert.False(t, Satisfies(ecosystem.JavaScript, "1.3.0", "~1.2.3"))
	assert.False(t, Satisfies(ecosystem.JavaScript, "1.2.2", "~1.2.3"))
}

func TestJSSpecComparators(t *testing.T) {
	assert.True(t, Satisfies(ecosystem.JavaScript, "2.0.0", ">1.9.9"))
	assert.True(t, Satisfies(ecosystem.JavaScript, "1.9.9", "<=1.9.9"))
	assert.False(t, Satisfies(ecosystem.JavaScript, "1.9.8", ">=1.9.9"))
}

func TestRustSharesJSGrammar(t *testing.T) {
	// Cargo.toml string requirements ("^1.2", "~1.2", comparators) use npm's
	// grammar; a bare "1.2" is read as "^1.2".
	assert.True(t, Satisfies(ecosystem.Rust, "1.3.5", "^1.2"))
	assert.False(t, Satisfies(ecosystem.Rust, "2.0.0", "^1.2"))
}

func TestParseSpecReuse(t *testing.T) {
	vs := ParseSpec(ecosystem.JavaScript, "^1.2.3")
	assert.True(t, vs.Satisfies("1.2.3"))
	assert.True(t, vs.Satisfies("1.5.0"))
	assert.False(t, vs.Satisfies("2.0.0"))
}
