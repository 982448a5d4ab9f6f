package scheme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidateState(t *testing.T) {
	assert.Equal(t, "", Scheme{State: All}.CandidateState())
	assert.Equal(t, "", Scheme{State: ""}.CandidateState())
	assert.Equal(t, "Delhi", Scheme{State: "Delhi"}.CandidateState())
}
