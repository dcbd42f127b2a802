// Package testutil provides fixtures and helpers shared by the katalog tests.
package testutil

import (
	"github.com/Veraticus/katalog/internal/catalog"
)

// Catalog codes used across tests.
const (
	CodeFoundationFormwork   = "801171321"
	CodeStripFootingConcrete = "274313811"
	CodeStripFootingForms    = "274351121"
	CodeStripFootingRebar    = "274361821"
	CodeSlabConcrete         = "411321414"
	CodeSlabForms            = "411351011"
	CodeSlabRebar            = "411361821"
	CodePitExcavation        = "131201101"
	CodeTrenchExcavation     = "132201101"
	CodeBrickMasonry         = "311231115"
	CodeDampProofing         = "711111001"
)

func price(v float64) *float64 {
	return &v
}

// TaxonomyRecords returns a small TSKP-like taxonomy.
func TaxonomyRecords() []catalog.Record {
	return []catalog.Record{
		{Code: "1", Name: "Zemní práce", Description: "Výkopy, násypy a zemní konstrukce"},
		{Code: "11", Name: "Přípravné a přidružené práce"},
		{Code: "13", Name: "Hloubené vykopávky", Description: "Výkopy jam a rýh"},
		{Code: "131", Name: "Hloubení jam", Description: "Hloubení nezapažených i zapažených jam"},
		{Code: "132", Name: "Hloubení rýh", Description: "Hloubení rýh šířky do 2 m"},
		{Code: "2", Name: "Základy", Description: "Základové pasy, patky, desky a piloty"},
		{Code: "27", Name: "Základy", Description: "Základové pasy, patky a bednění základů"},
		{Code: "271", Name: "Podkladní a výplňové vrstvy"},
		{Code: "274", Name: "Základové pasy", Description: "Základové pasy z betonu prostého i železového"},
		{Code: "275", Name: "Základové patky"},
		{Code: "3", Name: "Svislé a kompletní konstrukce", Description: "Zdi, pilíře, sloupy a příčky"},
		{Code: "31", Name: "Zdi podpěrné a volné"},
		{Code: "311", Name: "Zdi nosné", Description: "Zdivo nosné z cihel a tvárnic"},
		{Code: "4", Name: "Vodorovné konstrukce", Description: "Stropy, stropní desky a schodiště"},
		{Code: "41", Name: "Stropy a stropní konstrukce"},
		{Code: "411", Name: "Stropy deskové", Description: "Stropní desky ze železobetonu"},
		{Code: "7", Name: "Konstrukce", Description: "Izolace, klempířské a truhlářské konstrukce"},
		{Code: "71", Name: "Izolace"},
		{Code: "711", Name: "Izolace proti vodě", Description: "Izolace proti zemní vlhkosti a tlakové vodě"},
	}
}

// CatalogRecords returns a small priced catalog.
func CatalogRecords() []catalog.Record {
	return []catalog.Record{
		{Code: CodeFoundationFormwork, Name: "Bednění základů", Unit: "m2", Price: price(412.5)},
		{Code: CodeStripFootingConcrete, Name: "Základové pasy z betonu tř. C 25/30", Unit: "m3", Price: price(3180)},
		{Code: CodeStripFootingForms, Name: "Bednění základových pasů zřízení", Unit: "m2", Price: price(389)},
		{Code: CodeStripFootingRebar, Name: "Výztuž základových pasů z betonářské oceli", Unit: "t", Price: price(32500)},
		{Code: CodeSlabConcrete, Name: "Stropy deskové ze železobetonu C 25/30", Unit: "m3", Price: price(3650)},
		{Code: CodeSlabForms, Name: "Bednění stropů deskových zřízení", Unit: "m2", Price: price(520)},
		{Code: CodeSlabRebar, Name: "Výztuž stropů z betonářské oceli", Unit: "t", Price: price(33100)},
		{Code: CodePitExcavation, Name: "Hloubení jam nezapažených v hornině", Unit: "m3", Price: price(210)},
		{Code: CodeTrenchExcavation, Name: "Hloubení rýh šířky do 600 mm", Unit: "m3", Price: price(290)},
		{Code: CodeBrickMasonry, Name: "Zdivo nosné z cihel pálených", Unit: "m3", Price: price(4100)},
		{Code: CodeDampProofing, Name: "Izolace proti zemní vlhkosti vodorovná", Unit: "m2", Price: price(95)},
		{Code: "C25/30", Name: "Beton prostý", Unit: "m3"},
	}
}

// Provider returns a catalog provider over the fixture catalog and taxonomy.
func Provider() *catalog.Provider {
	return catalog.NewProvider(
		catalog.StaticSource(CatalogRecords()),
		catalog.StaticSource(TaxonomyRecords()),
		nil,
	)
}

// KnownCodes returns every fixture catalog code.
func KnownCodes() []string {
	records := CatalogRecords()
	codes := make([]string, 0, len(records))
	for _, r := range records {
		codes = append(codes, r.Code)
	}
	return codes
}
