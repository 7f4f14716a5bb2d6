package mockgen

import (
	"fmt"
	"math/rand"

	"github.com/crmkit/genwatch/internal/common/dto"
)

var (
	firstNames = []string{
		"Anna", "Boris", "Clara", "Dmitri", "Elena", "Felix", "Galina",
		"Hugo", "Irina", "Jonas", "Katya", "Leon", "Marta", "Nikita",
		"Olga", "Pavel", "Rosa", "Sergei", "Tamara", "Victor",
	}
	lastNames = []string{
		"Ivanov", "Petrova", "Smirnov", "Kuznetsova", "Popov", "Volkova",
		"Sokolov", "Fedorova", "Morozov", "Orlova", "Lebedev", "Kozlova",
	}
	companyWords = []string{
		"Atlas", "Borealis", "Cobalt", "Delta", "Ember", "Forge",
		"Granite", "Helix", "Ion", "Juniper", "Krypton", "Lumen",
	}
	companySuffixes = []string{"Group", "Systems", "Trading", "Logistics", "Partners", "Labs"}
	posts           = []string{"Manager", "Engineer", "Accountant", "Director", "Analyst", "Consultant"}
)

// Generator produces synthetic CRM records with sequential identifiers.
type Generator struct {
	rng       *rand.Rand
	nextID    int64
	companies []dto.Company
	contacts  []dto.Contact
}

// NewGenerator creates a generator seeded for reproducible runs when seed is
// non-zero.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = rand.Int63()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed)), nextID: 1}
}

// Company fabricates one company record.
func (g *Generator) Company() dto.Company {
	id := g.nextID
	g.nextID++
	c := dto.Company{
		ID:       id,
		Title:    fmt.Sprintf("%s %s", pick(g.rng, companyWords), pick(g.rng, companySuffixes)),
		Phone:    g.phone(),
		Email:    fmt.Sprintf("office%d@example.com", id),
		Contacts: []dto.Contact{},
	}
	g.companies = append(g.companies, c)
	return c
}

// Contact fabricates one contact record.
func (g *Generator) Contact() dto.Contact {
	id := g.nextID
	g.nextID++
	c := dto.Contact{
		ID:       id,
		Name:     pick(g.rng, firstNames),
		LastName: pick(g.rng, lastNames),
		Phone:    g.phone(),
		Email:    fmt.Sprintf("user%d@example.com", id),
		Post:     pick(g.rng, posts),
	}
	g.contacts = append(g.contacts, c)
	return c
}

func (g *Generator) phone() string {
	return fmt.Sprintf("+7 (9%02d) %03d-%02d-%02d",
		g.rng.Intn(100), g.rng.Intn(1000), g.rng.Intn(100), g.rng.Intn(100))
}

func pick(rng *rand.Rand, list []string) string {
	return list[rng.Intn(len(list))]
}
