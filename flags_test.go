package cahute

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlagsHas(t *testing.T) {
	f := CloseMedium | NoTerm
	assert.True(t, f.has(CloseMedium))
	assert.True(t, f.has(NoTerm))
	assert.False(t, f.has(Irrecoverable))
}
