package clauseindex

import (
	"context"
	"testing"
	"time"

	"compliance-navigator-be/internal/pkg/logger"
	"compliance-navigator-be/pkg/navigation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentText(t *testing.T) {
	stream := []byte(`BT
/F1 12 Tf
72 712 Td
(Clause 19 Gifts) Tj
0 -14 Td
[(Clause 19.)-20(1 Prohibition)] TJ
(see \(Clause 3\) for scope) Tj
ET`)

	got := ContentText(stream)

	assert.Equal(t, "Clause 19 Gifts\nClause 19.1 Prohibition\nsee (Clause 3) for scope\n", got)
}

func TestScanPages(t *testing.T) {
	pages := map[int]string{
		3: "Clause 19 Gifts\nsee Clause 2 for scope\n",
		1: "Contents\nCLAUSE 1 Scope\n",
		4: "Clause 19 Gifts (continued)\nClause 19.1 Prohibition\n",
		0: "Clause 99\n",
	}

	got := ScanPages(pages)

	assert.Equal(t, navigation.Index{"1": 1, "19": 3, "19.1": 4}, got)
}

func TestBuildRejectsNonPDF(t *testing.T) {
	b := NewBuilder(logger.NewNopLogger(), time.Minute)

	_, err := b.Build(context.Background(), []byte("<html>not a pdf</html>"))

	assert.Error(t, err)
}

func TestBuildUsesCache(t *testing.T) {
	b := NewBuilder(logger.NewNopLogger(), time.Minute)
	payload := []byte("%PDF-1.7 cached")
	b.cache.SetDefault(contentKey(payload), navigation.Index{"5": 2})

	got, err := b.Build(context.Background(), payload)

	require.NoError(t, err)
	assert.Equal(t, navigation.Index{"5": 2}, got)
}
