package subset_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	subset "github.com/jasonwhite/git-subset"
)

func TestSetLogger_NilRestoresDefault(t *testing.T) {
	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	subset.SetLogger(custom)
	assert.NotPanics(t, func() { subset.SetLogger(nil) })
}
