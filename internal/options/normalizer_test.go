package options

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var shirtGroups = []Group{
	{Name: "Size", OptionIDs: []string{"sz-s", "sz-m", "sz-l"}},
	{Name: "Color", OptionIDs: []string{"col-white", "col-black"}},
	{Name: "QTY", OptionIDs: []string{"qty-25", "qty-50", "qty-100"}},
}

func TestNormalizeFullSelection(t *testing.T) {
	got, err := Normalize(shirtGroups, []string{"qty-50", "sz-m", "col-black"})
	require.NoError(t, err)
	require.Equal(t, []string{"col-black", "qty-50", "sz-m"}, got.IDs)
	require.Equal(t, "sz-m", got.ByGroup["Size"])
}

func TestNormalizeFillsQuantityDefault(t *testing.T) {
	got, err := Normalize(shirtGroups, []string{"sz-s", "col-white"})
	require.NoError(t, err)
	require.Equal(t, "qty-25", got.ByGroup["QTY"])
}

func TestNormalizeQuantityGroupCaseInsensitive(t *testing.T) {
	groups := []Group{
		{Name: "Quantity", OptionIDs: []string{"q-10"}},
		{Name: "Size", OptionIDs: []string{"sz-s"}},
	}
	got, err := Normalize(groups, []string{"sz-s"})
	require.NoError(t, err)
	require.Equal(t, "q-10", got.ByGroup["Quantity"])
}

func TestNormalizeUnknownIDs(t *testing.T) {
	_, err := Normalize(shirtGroups, []string{"sz-m", "col-black", "bogus-1", "bogus-2"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, ReasonUnknownOptionIDs, verr.Reason)
	require.Equal(t, []string{"bogus-1", "bogus-2"}, verr.Subjects)
}

func TestNormalizeDuplicateGroupChoice(t *testing.T) {
	_, err := Normalize(shirtGroups, []string{"sz-m", "sz-l", "col-black", "qty-25"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, ReasonDuplicateGroupChoice, verr.Reason)
	require.Equal(t, []string{"Size"}, verr.Subjects)
}

func TestNormalizeRepeatedSameChoiceIsFine(t *testing.T) {
	got, err := Normalize(shirtGroups, []string{"sz-m", "sz-m", "col-black", "qty-25"})
	require.NoError(t, err)
	require.Equal(t, "sz-m", got.ByGroup["Size"])
}

func TestNormalizeMissingGroups(t *testing.T) {
	_, err := Normalize(shirtGroups, []string{"qty-50"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, ReasonMissingGroups, verr.Reason)
	require.Equal(t, []string{"Color", "Size"}, verr.Subjects)
}

func TestNormalizeIgnoresBlankEntries(t *testing.T) {
	got, err := Normalize(shirtGroups, []string{" sz-m ", "", "col-black", "qty-25"})
	require.NoError(t, err)
	require.Equal(t, "sz-m", got.ByGroup["Size"])
}

func TestNormalizeNoGroups(t *testing.T) {
	got, err := Normalize(nil, nil)
	require.NoError(t, err)
	require.Empty(t, got.IDs)
}
