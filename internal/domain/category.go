package domain

import "sort"

// Category classifies a complaint by subject. CategoryMunicipal routes to a
// local deputy; every other category routes to the MP of the wilaya.
type Category string

const (
	CategoryMunicipal        Category = "municipal"
	CategoryHealth           Category = "health"
	CategoryEducation        Category = "education"
	CategoryHigherEducation  Category = "higher_education"
	CategoryHousing          Category = "housing"
	CategoryEmployment       Category = "employment"
	CategoryWater            Category = "water"
	CategoryEnergy           Category = "energy"
	CategoryTransport        Category = "transport"
	CategoryPublicWorks      Category = "public_works"
	CategoryAgriculture      Category = "agriculture"
	CategoryInterior         Category = "interior"
	CategoryJustice          Category = "justice"
	CategoryFinance          Category = "finance"
	CategoryCommerce         Category = "commerce"
	CategoryTelecom          Category = "telecom"
	CategoryYouthSports      Category = "youth_sports"
	CategoryCulture          Category = "culture"
	CategoryEnvironment      Category = "environment"
	CategorySocialSolidarity Category = "social_solidarity"
	CategoryReligiousAffairs Category = "religious_affairs"
)

// ministries maps each non-municipal category to the display label of the
// responsible ministry. The label only appears in generated letters.
var ministries = map[Category]string{
	CategoryHealth:           "Ministère de la Santé",
	CategoryEducation:        "Ministère de l'Éducation Nationale",
	CategoryHigherEducation:  "Ministère de l'Enseignement Supérieur et de la Recherche Scientifique",
	CategoryHousing:          "Ministère de l'Habitat, de l'Urbanisme et de la Ville",
	CategoryEmployment:       "Ministère du Travail, de l'Emploi et de la Sécurité Sociale",
	CategoryWater:            "Ministère de l'Hydraulique",
	CategoryEnergy:           "Ministère de l'Énergie et des Mines",
	CategoryTransport:        "Ministère des Transports",
	CategoryPublicWorks:      "Ministère des Travaux Publics",
	CategoryAgriculture:      "Ministère de l'Agriculture et du Développement Rural",
	CategoryInterior:         "Ministère de l'Intérieur et des Collectivités Locales",
	CategoryJustice:          "Ministère de la Justice",
	CategoryFinance:          "Ministère des Finances",
	CategoryCommerce:         "Ministère du Commerce",
	CategoryTelecom:          "Ministère de la Poste et des Télécommunications",
	CategoryYouthSports:      "Ministère de la Jeunesse et des Sports",
	CategoryCulture:          "Ministère de la Culture et des Arts",
	CategoryEnvironment:      "Ministère de l'Environnement",
	CategorySocialSolidarity: "Ministère de la Solidarité Nationale, de la Famille et de la Condition de la Femme",
	CategoryReligiousAffairs: "Ministère des Affaires Religieuses et des Wakfs",
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	if c == CategoryMunicipal {
		return true
	}
	_, ok := ministries[c]
	return ok
}

// IsMunicipal reports whether c routes to a local deputy.
func (c Category) IsMunicipal() bool { return c == CategoryMunicipal }

// Ministry returns the responsible ministry label, or "" for the municipal
// category and unknown values.
func (c Category) Ministry() string { return ministries[c] }

// CategoryInfo is the public description of a category.
type CategoryInfo struct {
	Category Category `json:"category"`
	Ministry string   `json:"ministry,omitempty"`
}

// Categories lists every category, municipal first, then alphabetically.
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, 0, len(ministries)+1)
	for c, m := range ministries {
		out = append(out, CategoryInfo{Category: c, Ministry: m})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return append([]CategoryInfo{{Category: CategoryMunicipal}}, out...)
}
