package services

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/choukwa/choukwa-backend/internal/domain"
)

// LetterSender identifies the signatory of an official letter.
type LetterSender struct {
	Name   string
	Title  string
	Wilaya string
}

var categoryLabels = map[domain.Category]string{
	domain.CategoryMunicipal:        "Affaires municipales",
	domain.CategoryHealth:           "Santé",
	domain.CategoryEducation:        "Éducation",
	domain.CategoryHigherEducation:  "Enseignement supérieur",
	domain.CategoryHousing:          "Habitat",
	domain.CategoryEmployment:       "Emploi",
	domain.CategoryWater:            "Eau",
	domain.CategoryEnergy:           "Énergie",
	domain.CategoryTransport:        "Transports",
	domain.CategoryPublicWorks:      "Travaux publics",
	domain.CategoryAgriculture:      "Agriculture",
	domain.CategoryInterior:         "Intérieur",
	domain.CategoryJustice:          "Justice",
	domain.CategoryFinance:          "Finances",
	domain.CategoryCommerce:         "Commerce",
	domain.CategoryTelecom:          "Poste et télécommunications",
	domain.CategoryYouthSports:      "Jeunesse et sports",
	domain.CategoryCulture:          "Culture",
	domain.CategoryEnvironment:      "Environnement",
	domain.CategorySocialSolidarity: "Solidarité nationale",
	domain.CategoryReligiousAffairs: "Affaires religieuses",
}

// categoryLabel returns the French display label of c.
func categoryLabel(c domain.Category) string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// frenchDate formats t as "2 janvier 2006".
func frenchDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), frenchMonths[t.Month()-1], t.Year())
}

// RenderLetter produces the official letter forwarding c to its ministry.
// The output is plain text; clients print or export it.
func RenderLetter(c *domain.Complaint, from LetterSender, location string, at time.Time) string {
	var b strings.Builder
	b.WriteString("RÉPUBLIQUE ALGÉRIENNE DÉMOCRATIQUE ET POPULAIRE\n")
	b.WriteString("ASSEMBLÉE POPULAIRE NATIONALE\n\n")

	place := from.Wilaya
	if place == "" {
		place = "Alger"
	}
	fmt.Fprintf(&b, "%s, le %s\n\n", place, frenchDate(at))
	fmt.Fprintf(&b, "À l'attention de Monsieur/Madame le/la Ministre\n%s\n\n", cases.Upper(language.French).String(c.Category.Ministry()))
	fmt.Fprintf(&b, "Objet : transmission d'une réclamation citoyenne (%s)\n", categoryLabel(c.Category))
	fmt.Fprintf(&b, "Référence : %s\n\n", c.ID)

	b.WriteString("Monsieur/Madame le/la Ministre,\n\n")
	fmt.Fprintf(&b, "J'ai l'honneur de porter à votre haute attention la réclamation ci-dessous, reçue le %s", frenchDate(c.CreatedAt))
	if location != "" {
		fmt.Fprintf(&b, " et émanant d'un citoyen de %s", location)
	}
	b.WriteString(".\n\n")
	b.WriteString("« ")
	b.WriteString(strings.TrimSpace(c.Content))
	b.WriteString(" »\n\n")
	b.WriteString("Je vous saurais gré de bien vouloir examiner cette demande et de me faire part des suites qui y seront réservées.\n\n")
	b.WriteString("Veuillez agréer, Monsieur/Madame le/la Ministre, l'expression de ma haute considération.\n\n")

	b.WriteString(from.Name)
	b.WriteByte('\n')
	if from.Title != "" {
		b.WriteString(from.Title)
		b.WriteByte('\n')
	}
	return b.String()
}
