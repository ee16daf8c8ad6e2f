package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBatchRejectsSharedIncu(t *testing.T) {
	plates := []Plate{
		{ID: "P1", IncuLoc: "i1", RTLoc: "r1", OutLoc: "out1"},
		{ID: "P2", IncuLoc: "i1", RTLoc: "r2", OutLoc: "out2"},
	}
	err := ValidateBatch(plates)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "i1")
}

func TestValidateBatchAcceptsDistinctSlots(t *testing.T) {
	plates := []Plate{
		{ID: "P1", IncuLoc: "i1", RTLoc: "r1", OutLoc: "out1"},
		{ID: "P2", IncuLoc: "i2", RTLoc: "r2", OutLoc: "out2"},
	}
	assert.NoError(t, ValidateBatch(plates))
}

func TestValidateAcrossBatchesAllowsSharedRT(t *testing.T) {
	batch0 := []Plate{{ID: "P1", IncuLoc: "i1", RTLoc: "r1", OutLoc: "out1"}}
	batch1 := []Plate{{ID: "P2", IncuLoc: "i2", RTLoc: "r1", OutLoc: "out2"}}
	assert.NoError(t, ValidateAcrossBatches([][]Plate{batch0, batch1}))
}

func TestValidateAcrossBatchesRejectsSharedIncu(t *testing.T) {
	batch0 := []Plate{{ID: "P1", IncuLoc: "i1", RTLoc: "r1", OutLoc: "out1"}}
	batch1 := []Plate{{ID: "P2", IncuLoc: "i1", RTLoc: "r2", OutLoc: "out2"}}
	err := ValidateAcrossBatches([][]Plate{batch0, batch1})
	assert.Error(t, err)
}

func TestWorldOccupantDefaultsFree(t *testing.T) {
	w := NewWorld()
	assert.Equal(t, Occupant{Kind: Free}, w.Occupant("h21"))
}

func TestWorldPlaceAndClear(t *testing.T) {
	w := NewWorld()
	w.Place("h21", Occupant{Kind: OccupiedByPlate, PlateID: "P1"})
	assert.Equal(t, "P1", w.Occupant("h21").PlateID)
	assert.Equal(t, OccupiedByPlate, w.Occupant("h21").Kind)

	w.Clear("h21")
	assert.Equal(t, Free, w.Occupant("h21").Kind)
}

func TestOccupantString(t *testing.T) {
	assert.Equal(t, "free", Occupant{Kind: Free}.String())
	assert.Equal(t, "P1", Occupant{Kind: OccupiedByPlate, PlateID: "P1"}.String())
	assert.Equal(t, "lid(P1)", Occupant{Kind: OccupiedByLid, PlateID: "P1"}.String())
	assert.Equal(t, "target(P1)", Occupant{Kind: OccupiedByTarget, PlateID: "P1"}.String())
}

func TestWorldSnapshotIsCopy(t *testing.T) {
	w := NewWorld()
	w.Place("h21", Occupant{Kind: OccupiedByPlate, PlateID: "P1"})
	snap := w.Snapshot()
	snap["h21"] = Occupant{Kind: Free}
	assert.Equal(t, OccupiedByPlate, w.Occupant("h21").Kind)
}
