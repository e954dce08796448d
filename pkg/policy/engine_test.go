package policy_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/inflect-gtm/inflect/pkg/policy"
	"github.com/m-mizutani/gt"
)

const segmentPolicy = `package segment

name = "enterprise" if {
	to_number(input.fields.Seats) >= 100
}

name = "smb" if {
	to_number(input.fields.Seats) < 100
}

strategy := "Assign a dedicated CSM and run a kickoff workshop" if {
	name == "enterprise"
}
`

func customers() []*model.Customer {
	return []*model.Customer{
		{ID: "c1", Fields: map[string]string{"Name": "Acme", "Seats": "250"}},
		{ID: "c2", Fields: map[string]string{"Name": "Tiny Co", "Seats": "12"}},
		{ID: "c3", Fields: map[string]string{"Name": "Globex", "Seats": "100"}},
		{ID: "c4", Fields: map[string]string{"Name": "Unknown"}},
	}
}

func TestGroupFromDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "segment.rego"), []byte(segmentPolicy), 0644))

	engine, err := policy.New(ctx, dir)
	gt.NoError(t, err)
	gt.True(t, engine.Enabled())

	list := customers()
	segments, err := engine.Group(ctx, list)
	gt.NoError(t, err)
	gt.A(t, segments).Length(3)

	gt.Equal(t, segments[0].Name, "enterprise")
	gt.Equal(t, segments[0].CustomerIDs, []model.CustomerID{"c1", "c3"})
	gt.Equal(t, segments[0].Strategy, "Assign a dedicated CSM and run a kickoff workshop")

	gt.Equal(t, segments[1].Name, "smb")
	gt.Equal(t, segments[1].Strategy, "")

	gt.Equal(t, segments[2].Name, policy.Unsegmented)
	gt.Equal(t, segments[2].CustomerIDs, []model.CustomerID{"c4"})

	gt.Equal(t, list[1].Segment, "smb")
}

func TestEmptyPolicyDirectory(t *testing.T) {
	engine, err := policy.New(context.Background(), t.TempDir())
	gt.NoError(t, err)
	gt.False(t, engine.Enabled())

	d, err := engine.Evaluate(context.Background(), customers()[0])
	gt.NoError(t, err)
	gt.Equal(t, d.Segment, policy.Unsegmented)
}

func TestInvalidPolicy(t *testing.T) {
	_, err := policy.NewFromModules(context.Background(), map[string]string{
		"broken.rego": "package segment\n\nname := if {",
	})
	gt.Error(t, err)
}
