package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitPath(t *testing.T) {
	assert.Equal(t, []string{"OrderViewRS", "Response", "DataLists"}, SplitPath("OrderViewRS/Response/DataLists"))
	assert.Equal(t, []string{"a", "b"}, SplitPath("/a//b/"))
	assert.Empty(t, SplitPath(""))
}

func TestTargetPath_Segments(t *testing.T) {
	tp := TargetPath{Path: "OrderViewRS/Response/DataLists/PaxList"}
	assert.Len(t, tp.Segments(), 4)
}
