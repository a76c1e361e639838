package purchase

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var importNow = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func TestParseTableHeaderAliases(t *testing.T) {
	input := strings.Join([]string{
		"Product Name,BATCH_NO,Exp Date,QTY,Purchase Rate,MRP,Margin,Free Qty,GST%",
		"Paracetamol 500,PX101,12/27,100,10.50,15.00,25,10,12",
	}, "\n")
	// The % sign is not stripped, so "GST%" matches no alias and the
	// column is ignored rather than rejected.
	lines, rowErrs, err := ParseTable(strings.NewReader(input), importNow)
	require.NoError(t, err)
	require.Empty(t, rowErrs)
	require.Len(t, lines, 1)

	l := lines[0]
	require.Equal(t, "Paracetamol 500", l.MedicineName)
	require.Equal(t, "PX101", l.BatchNo)
	require.Equal(t, int64(100), l.Quantity)
	require.Equal(t, int64(10), l.FreeQuantity)
	require.Equal(t, 10.50, l.Rate)
	require.Equal(t, 15.00, l.MRP)
	require.NotNil(t, l.Margin)
	require.Equal(t, 25.0, *l.Margin)
}

func TestParseTableMissingRequiredColumn(t *testing.T) {
	input := "name,batch,qty,rate,mrp\nA,B1,1,2,3\n"
	_, rowErrs, err := ParseTable(strings.NewReader(input), importNow)
	require.NoError(t, err)
	require.Len(t, rowErrs, 1)
	require.Equal(t, 1, rowErrs[0].Row)
	require.Equal(t, "expiry", rowErrs[0].Column)
}

func TestParseTableAllOrNothing(t *testing.T) {
	input := strings.Join([]string{
		"name,batch,expiry,quantity,rate,mrp",
		"Good Med,G1,2027-06,10,5.00,8.00",
		"Bad Med,B1,2027-06,-3,5.00,8.00",
		"Also Good,G2,2027-06,4,2.00,3.00",
	}, "\n")
	lines, rowErrs, err := ParseTable(strings.NewReader(input), importNow)
	require.NoError(t, err)
	require.Nil(t, lines, "no lines may survive a rejected file")
	require.Len(t, rowErrs, 1)
	require.Equal(t, 3, rowErrs[0].Row)
	require.Equal(t, "quantity", rowErrs[0].Column)
}

func TestParseTableDuplicatePairRejected(t *testing.T) {
	input := strings.Join([]string{
		"name,batch,expiry,quantity,rate,mrp",
		"Amoxicillin,AMX1,2027-06,10,5.00,8.00",
		"amoxicillin,amx1,2027-06,5,5.00,8.00",
	}, "\n")
	lines, rowErrs, err := ParseTable(strings.NewReader(input), importNow)
	require.NoError(t, err)
	require.Nil(t, lines)
	require.Len(t, rowErrs, 1)
	require.Equal(t, 3, rowErrs[0].Row)
	require.Contains(t, rowErrs[0].Reason, "row 2")
}

func TestParseTableExpiryRules(t *testing.T) {
	cases := []struct {
		name   string
		expiry string
		reason string
	}{
		{"past date", "2024-01-01", "expiry must be in the future"},
		{"garbage", "soon", "unrecognized expiry format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := "name,batch,expiry,quantity,rate,mrp\nMed,B1," + tc.expiry + ",1,2,3\n"
			_, rowErrs, err := ParseTable(strings.NewReader(input), importNow)
			require.NoError(t, err)
			require.Len(t, rowErrs, 1)
			require.Equal(t, tc.reason, rowErrs[0].Reason)
		})
	}
}

func TestParseTableSkipsBlankRowsAndKeepsRowNumbers(t *testing.T) {
	input := strings.Join([]string{
		"name,batch,expiry,quantity,rate,mrp",
		"Med A,A1,2027-06,1,2,3",
		",,,,,",
		"Med B,B1,2027-06,bad,2,3",
	}, "\n")
	_, rowErrs, err := ParseTable(strings.NewReader(input), importNow)
	require.NoError(t, err)
	require.Len(t, rowErrs, 1)
	require.Equal(t, 4, rowErrs[0].Row, "row numbers count blank rows")
}

func TestParseTableEmpty(t *testing.T) {
	_, _, err := ParseTable(strings.NewReader(""), importNow)
	require.ErrorIs(t, err, ErrNoItems)

	_, _, err = ParseTable(strings.NewReader("name,batch,expiry,quantity,rate,mrp\n"), importNow)
	require.ErrorIs(t, err, ErrNoItems)
}
