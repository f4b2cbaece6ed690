package patient

import (
	"errors"
	"sort"
	"strings"

	"github.com/pantach/patientdb/internal/avltree"
)

// ErrDuplicate is returned by Insert when the country already holds a
// patient with the same id.
var ErrDuplicate = errors.New("duplicate patient id for country")

// ErrExitBeforeEntry is returned by SetExit when the candidate exit date
// precedes the patient's entry date.
var ErrExitBeforeEntry = errors.New("exit date comes before entry date")

type dateTree = avltree.Tree[Date, *Patient]

// Index is a single Worker's in-memory Patient store. It owns Patient
// objects in byCountryID; the two order-statistic trees hold
// non-owning back-references. Index is not safe for concurrent use: all
// mutation and all reads happen on the Worker's single main goroutine.
type Index struct {
	byCountryID   map[string]map[string]*Patient
	byCountryDate map[string]*dateTree
	byVirusDate   map[string]*dateTree
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{
		byCountryID:   make(map[string]map[string]*Patient),
		byCountryDate: make(map[string]*dateTree),
		byVirusDate:   make(map[string]*dateTree),
	}
}

func fold(s string) string { return strings.ToLower(s) }

// Insert adds p to all three structures atomically, or rejects it as a
// duplicate if the country already holds a patient with that id. id
// comparison is case-sensitive; country/virus comparison is not.
func (ix *Index) Insert(p *Patient) error {
	country := fold(p.Country)

	if byID, ok := ix.byCountryID[country]; ok {
		if _, exists := byID[p.ID]; exists {
			return ErrDuplicate
		}
	}

	if ix.byCountryID[country] == nil {
		ix.byCountryID[country] = make(map[string]*Patient)
	}
	if ix.byCountryDate[country] == nil {
		ix.byCountryDate[country] = avltree.New[Date, *Patient](CompareDate)
	}
	virus := fold(p.Virus)
	if ix.byVirusDate[virus] == nil {
		ix.byVirusDate[virus] = avltree.New[Date, *Patient](CompareDate)
	}

	ix.byCountryID[country][p.ID] = p
	ix.byCountryDate[country].Insert(p.EntryDate, p)
	ix.byVirusDate[virus].Insert(p.EntryDate, p)

	return nil
}

// CountryPatientCount returns how many patients are currently indexed for
// country, for metrics reporting.
func (ix *Index) CountryPatientCount(country string) int {
	return len(ix.byCountryID[fold(country)])
}

// Find looks up a patient by country and id. O(1) expected.
func (ix *Index) Find(country, id string) (*Patient, bool) {
	byID, ok := ix.byCountryID[fold(country)]
	if !ok {
		return nil, false
	}
	p, ok := byID[id]
	return p, ok
}

// SetExit sets p.ExitDate to exit iff exit is not before p.EntryDate.
// Tree keys are unchanged because both trees key on entry date, not exit
// date.
func (ix *Index) SetExit(p *Patient, exit Date) error {
	if CompareDate(exit, p.EntryDate) < 0 {
		return ErrExitBeforeEntry
	}
	p.ExitDate = exit
	return nil
}

// GetByCountryAndEntryDate returns the bag of patients admitted to country
// on exactly date. Returns nil if the country or date node is absent.
func (ix *Index) GetByCountryAndEntryDate(country string, date Date) []*Patient {
	tr, ok := ix.byCountryDate[fold(country)]
	if !ok {
		return nil
	}
	bag, _ := tr.Locate(date)
	return bag
}

// DiseaseFrequency counts patients with the given virus whose entry date
// falls in [start,end], optionally restricted to one country. Returns 0
// when the virus is unknown.
func (ix *Index) DiseaseFrequency(virus string, start, end Date, country string) int {
	tr, ok := ix.byVirusDate[fold(virus)]
	if !ok {
		return 0
	}

	wantCountry := ""
	if country != "" {
		wantCountry = fold(country)
	}

	count := 0
	tr.TraverseRange(avltree.InOrder, start, end, func(bag []*Patient) int {
		for _, p := range bag {
			if wantCountry == "" || fold(p.Country) == wantCountry {
				count++
			}
		}
		return 0
	})
	return count
}

// Admissions counts patients of one country admitted with the given virus
// in [start,end], via the country-keyed tree.
func (ix *Index) Admissions(country, virus string, start, end Date) int {
	tr, ok := ix.byCountryDate[fold(country)]
	if !ok {
		return 0
	}

	wantVirus := fold(virus)
	count := 0
	tr.TraverseRange(avltree.InOrder, start, end, func(bag []*Patient) int {
		for _, p := range bag {
			if fold(p.Virus) == wantVirus {
				count++
			}
		}
		return 0
	})
	return count
}

// Discharges counts patients of one country, admitted with the given
// virus, whose exit date is defined and falls in [start,end]. Exit date
// is not indexed (trees key on entry date), so this requires a full
// in-order traversal of the country's tree.
func (ix *Index) Discharges(country, virus string, start, end Date) int {
	tr, ok := ix.byCountryDate[fold(country)]
	if !ok {
		return 0
	}

	wantVirus := fold(virus)
	count := 0
	tr.Traverse(avltree.InOrder, func(bag []*Patient) int {
		for _, p := range bag {
			if fold(p.Virus) != wantVirus || !p.ExitDate.IsDefined() {
				continue
			}
			if CompareDate(p.ExitDate, start) >= 0 && CompareDate(p.ExitDate, end) <= 0 {
				count++
			}
		}
		return 0
	})
	return count
}

// AgeRangeResult is one bucket of a TopKAgeRanges result.
type AgeRangeResult struct {
	Label   string
	Percent float64
}

// TopKAgeRanges buckets ages (0-20, 21-40, 41-60, 60+) among patients of
// country admitted with virus in [start,end], and returns the top
// min(k,4) buckets by count descending. Ties break by the fixed bucket
// order. Percentages are of the matching total, 0 when that total is 0.
// Returns nil if the country subtree is absent.
func (ix *Index) TopKAgeRanges(k int, country, virus string, start, end Date) []AgeRangeResult {
	tr, ok := ix.byCountryDate[fold(country)]
	if !ok {
		return nil
	}
	if k > int(numAgeBuckets) {
		k = int(numAgeBuckets)
	}
	if k < 0 {
		k = 0
	}

	wantVirus := fold(virus)
	var counts [numAgeBuckets]int
	total := 0

	tr.TraverseRange(avltree.InOrder, start, end, func(bag []*Patient) int {
		for _, p := range bag {
			if fold(p.Virus) != wantVirus {
				continue
			}
			counts[bucketFor(p.Age)]++
			total++
		}
		return 0
	})

	type entry struct {
		bucket AgeBucket
		count  int
	}
	entries := make([]entry, numAgeBuckets)
	for b := AgeBucket(0); b < numAgeBuckets; b++ {
		entries[b] = entry{bucket: b, count: counts[b]}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].count > entries[j].count
	})

	results := make([]AgeRangeResult, 0, k)
	for i := 0; i < k && i < len(entries); i++ {
		pct := 0.0
		if total > 0 {
			pct = float64(entries[i].count) * 100 / float64(total)
		}
		results = append(results, AgeRangeResult{
			Label:   entries[i].bucket.Label(),
			Percent: pct,
		})
	}
	return results
}
