package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPattern_ObserveScope(t *testing.T) {
	p := &Pattern{ExampleCount: 1}

	p.ObserveScope(Scope{Airline: "BA", Version: "17.2"})
	p.ObserveScope(Scope{Airline: "AA", Version: "17.2"})

	assert.Equal(t, []string{"AA", "BA"}, p.Airlines)
	assert.Equal(t, []string{"17.2"}, p.Versions)
	assert.Equal(t, 3, p.ExampleCount)
}

func TestPattern_ObserveScope_EmptyDimensions(t *testing.T) {
	p := &Pattern{}
	p.ObserveScope(Scope{})

	assert.Empty(t, p.Airlines)
	assert.Empty(t, p.Versions)
	assert.Equal(t, 1, p.ExampleCount)
}

func TestPattern_HasScope(t *testing.T) {
	p := &Pattern{Airlines: []string{"AA", "BA"}, Versions: []string{"17.2"}}

	assert.True(t, p.HasScope(Scope{Airline: "AA", Version: "17.2"}))
	assert.False(t, p.HasScope(Scope{Airline: "CA", Version: "17.2"}))
	assert.False(t, p.HasScope(Scope{Airline: "AA", Version: "19.2"}))
}

func TestPattern_Superseded(t *testing.T) {
	assert.False(t, (&Pattern{}).Superseded())
	assert.True(t, (&Pattern{SupersededBy: "p-1"}).Superseded())
}

func TestMergeSets(t *testing.T) {
	assert.Equal(t, []string{"AA", "BA", "CA"}, MergeSets([]string{"BA", "CA"}, []string{"AA", "BA"}))
	assert.Equal(t, []string{"AA"}, MergeSets(nil, []string{"AA"}))
	assert.Empty(t, MergeSets(nil, nil))
}

func TestDescriptor_TagMultiset(t *testing.T) {
	d := Descriptor{Tag: "PaxList", Children: []Descriptor{
		{Tag: "Pax"},
		{Tag: "Pax", Children: []Descriptor{{Tag: "PTC"}}},
	}}
	assert.Equal(t, map[string]int{"PaxList": 1, "Pax": 2, "PTC": 1}, d.TagMultiset())
}

func TestDescriptor_AttrNameSet(t *testing.T) {
	d := Descriptor{Tag: "PaxList", Children: []Descriptor{
		{Tag: "Pax", AttrNames: []string{"PaxID"}},
		{Tag: "Pax", AttrNames: []string{"PaxID", "PTC"}},
	}}
	set := d.AttrNameSet()
	assert.Len(t, set, 2)
	assert.Contains(t, set, "Pax@PaxID")
	assert.Contains(t, set, "Pax@PTC")
}
