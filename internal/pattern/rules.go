package pattern

import "github.com/Veraticus/katalog/internal/model"

// DefaultRules returns the built-in companion rules. Rules are evaluated in
// order; earlier rules win when two rules propose the same code.
func DefaultRules() []model.CompanionRule {
	return []model.CompanionRule{
		{
			ID:      "footing-concrete",
			Name:    "Concrete footings need formwork and reinforcement",
			Trigger: `(základ|pas[yůu]|patk).*beton|beton.*(základ|pas[yůu]|patk)`,
			Generates: []model.CompanionTemplate{
				{Code: "274351121", Name: "Bednění základových pasů zřízení", Unit: "m2", Reason: "betonáž základů vyžaduje bednění"},
				{Code: "274351122", Name: "Bednění základových pasů odstranění", Unit: "m2", Reason: "bednění je nutné odstranit"},
				{Code: "274361821", Name: "Výztuž základových pasů z betonářské oceli", Unit: "t", Reason: "železobetonové základy vyžadují výztuž"},
			},
		},
		{
			ID:      "slab-concrete",
			Name:    "Concrete slabs need formwork and reinforcement",
			Trigger: `(strop|desk).*beton|(železo)?beton.*(strop|desk)`,
			Generates: []model.CompanionTemplate{
				{Code: "411351011", Name: "Bednění stropů deskových zřízení", Unit: "m2", Reason: "betonáž stropu vyžaduje bednění"},
				{Code: "411351012", Name: "Bednění stropů deskových odstranění", Unit: "m2", Reason: "bednění je nutné odstranit"},
				{Code: "411361821", Name: "Výztuž stropů z betonářské oceli", Unit: "t", Reason: "železobetonová deska vyžaduje výztuž"},
			},
		},
		{
			ID:      "excavation-haulage",
			Name:    "Excavated soil must be hauled and deposited",
			Trigger: `hloubení|výkop|odkop`,
			Generates: []model.CompanionTemplate{
				{Code: "162751117", Name: "Vodorovné přemístění výkopku do 10 000 m", Unit: "m3", Reason: "výkopek je nutné odvézt"},
				{Code: "171201221", Name: "Poplatek za uložení zeminy na skládce", Unit: "t", Reason: "uložení výkopku na skládku"},
			},
		},
		{
			ID:      "masonry-plaster",
			Name:    "Masonry walls get plaster",
			Trigger: `zdivo|zdi\s|příčk`,
			Generates: []model.CompanionTemplate{
				{Code: "612321141", Name: "Vápenocementová omítka štuková vnitřních stěn", Unit: "m2", Reason: "zdivo se omítá"},
			},
		},
		{
			ID:      "damp-proofing-protection",
			Name:    "Damp proofing needs a protective layer",
			Trigger: `izolace.*(vlhk|vod)|hydroizol`,
			Generates: []model.CompanionTemplate{
				{Code: "711161212", Name: "Izolace nopovou fólií svislá", Unit: "m2", Reason: "ochrana hydroizolace"},
				{Code: "998711101", Name: "Přesun hmot pro izolace proti vodě", Unit: "t", Reason: "přesun hmot izolací"},
			},
		},
	}
}
