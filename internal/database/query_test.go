package database

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestQueryBuild(t *testing.T) {
	t.Parallel()

	columns := columnSet{
		"profile_id": "t.profile_id",
		"status":     "t.status",
		"due_date":   "t.due_date",
		"order":      `t."order"`,
		"priority":   "t.priority",
	}

	tests := []struct {
		name     string
		query    Query
		offset   int
		want     string
		wantArgs int
		wantErr  string
	}{
		{
			name:  "empty",
			query: Query{},
			want:  "",
		},
		{
			name:     "equality and order",
			query:    Query{Filters: []Filter{Eq("status", "today")}, OrderBy: []Order{{Column: "order"}}},
			offset:   1,
			want:     ` AND t.status = $2 ORDER BY t."order"`,
			wantArgs: 1,
		},
		{
			name: "null check and limit",
			query: Query{
				Filters: []Filter{IsNull("due_date", true)},
				OrderBy: []Order{{Column: "priority", Desc: true}},
				Limit:   10,
			},
			want:     " AND t.due_date IS NULL ORDER BY t.priority DESC LIMIT $1",
			wantArgs: 1,
		},
		{
			name:     "in uses array placeholder",
			query:    Query{Filters: []Filter{{Column: "status", Op: OpIn, Value: []string{"today", "overdue"}}}},
			want:     " AND t.status = ANY($1)",
			wantArgs: 1,
		},
		{
			name:    "unknown column rejected",
			query:   Query{Filters: []Filter{Eq("title; DROP TABLE tasks", "x")}},
			wantErr: "unknown filter column",
		},
		{
			name:    "unknown order column rejected",
			query:   Query{OrderBy: []Order{{Column: "nope"}}},
			wantErr: "unknown order column",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, args, err := tt.query.build(columns, tt.offset)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("build() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("build() unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("build() clause mismatch (-want +got):\n%s", diff)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("build() args = %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}
