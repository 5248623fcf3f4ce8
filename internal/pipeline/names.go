package pipeline

import (
	"math/rand/v2"
	"sync"
)

// Pseudonym pools. Person aliases are "First Last", company aliases are
// "Prefix Suffix".
var (
	FirstNames = []string{
		"Alex", "Jordan", "Taylor", "Morgan", "Casey", "Riley", "Jamie", "Avery", "Peyton", "Quinn", "Abaobi",
	}
	LastNames = []string{
		"SmithDoe", "JohnsonDoe", "LeeDoe", "BrownDoe", "GarciaDoe", "MartinezDoe", "DavisDoe", "ClarkDoe", "LewisDoe", "WalkerDoe", "OlufemiDoe",
	}
	CompanyPrefixes = []string{
		"ABCTech", "ABCGlobal", "ABCNextGen", "XYZPioneer", "ABCVision", "ABCQuantum", "XYZBlue", "ABCGreen", "DEFPrime", "123Dynamic",
	}
	CompanySuffixes = []string{
		"Solutions", "Systems", "Industries", "Enterprises", "Group", "Technologies", "Holdings", "Partners", "Labs", "Networks",
	}
)

// NameGenerator draws pseudonyms. Implementations must be safe for
// concurrent use.
type NameGenerator interface {
	Person() string
	Company() string
}

// RandomNames draws each part independently from the pools. The zero value
// uses the process-wide generator.
type RandomNames struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomNames returns a generator backed by the process-wide source.
func NewRandomNames() *RandomNames { return &RandomNames{} }

// NewSeededNames returns a generator whose sequence is fixed by seed.
func NewSeededNames(seed uint64) *RandomNames {
	return &RandomNames{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Person implements NameGenerator.
func (n *RandomNames) Person() string {
	return FirstNames[n.intn(len(FirstNames))] + " " + LastNames[n.intn(len(LastNames))]
}

// Company implements NameGenerator.
func (n *RandomNames) Company() string {
	return CompanyPrefixes[n.intn(len(CompanyPrefixes))] + " " + CompanySuffixes[n.intn(len(CompanySuffixes))]
}

func (n *RandomNames) intn(k int) int {
	if n == nil || n.rng == nil {
		return rand.IntN(k) // #nosec G404 -- pseudonyms are not secrets
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.rng.IntN(k) // #nosec G404
}
