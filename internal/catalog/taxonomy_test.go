package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/katalog/internal/catalog"
	"github.com/Veraticus/katalog/internal/model"
	"github.com/Veraticus/katalog/internal/testutil"
)

func TestBuildClassificationIndex(t *testing.T) {
	idx := catalog.BuildClassificationIndex(testutil.TaxonomyRecords())

	assert.Equal(t, len(testutil.TaxonomyRecords()), idx.Len())
	assert.Equal(t, []string{"1", "2", "3", "4", "7"}, idx.TopLevel())

	node, ok := idx.Node("274")
	require.True(t, ok)
	require.NotNil(t, node.ParentCode)
	assert.Equal(t, "27", *node.ParentCode)
	assert.Equal(t, 3, node.Level())

	top, ok := idx.Node("2")
	require.True(t, ok)
	assert.Nil(t, top.ParentCode)
	assert.True(t, top.IsTopLevel())
}

func TestBuildClassificationIndex_RepairsParents(t *testing.T) {
	idx := catalog.BuildClassificationIndex([]catalog.Record{
		{Code: "2", Name: "Základy"},
		{Code: "274", Name: "Základové pasy", ParentCode: "3"},
		{Code: "2741", Name: "Pasy z betonu"},
	})

	node, _ := idx.Node("274")
	require.NotNil(t, node.ParentCode)
	assert.Equal(t, "2", *node.ParentCode, "parent must be a prefix of the child")

	node, _ = idx.Node("2741")
	require.NotNil(t, node.ParentCode)
	assert.Equal(t, "274", *node.ParentCode)
}

func TestClassificationIndex_Descendants(t *testing.T) {
	idx := catalog.BuildClassificationIndex(testutil.TaxonomyRecords())

	assert.Equal(t, []string{"27", "271", "274", "275"}, idx.Descendants("2", 2, 4))
	assert.Equal(t, []string{"271", "274", "275"}, idx.Descendants("2", 3, 0))
	assert.Empty(t, idx.Descendants("9", 2, 4))
}

func TestClassificationIndex_Path(t *testing.T) {
	idx := catalog.BuildClassificationIndex(testutil.TaxonomyRecords())

	assert.Equal(t, []model.SectionRef{
		{Code: "2", Name: "Základy"},
		{Code: "27", Name: "Základy"},
		{Code: "274", Name: "Základové pasy"},
	}, idx.Path("274"))
	assert.Empty(t, idx.Path("999"))
}
