package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyos/taskcore/internal/status"
	"github.com/complyos/taskcore/internal/store"
)

func TestDecode_ClosedUnion(t *testing.T) {
	tests := []struct {
		name string
		data string
		want MessageType
	}{
		{
			name: "task_update",
			data: `{"type":"task_update","payload":{"id":7,"status":"in_progress","progress":50,"version":3}}`,
			want: TypeTaskUpdate,
		},
		{
			name: "company_tabs_updated",
			data: `{"type":"company_tabs_updated","payload":{"companyId":12,"availableTabs":["tasks","files"],"cache_invalidation":true,"version":1}}`,
			want: TypeCompanyTabsUpdated,
		},
		{
			name: "form_fields",
			data: `{"type":"form_fields","payload":{"action":"fields_cleared","taskId":7,"formType":"kyb","metadata":{"preserveProgress":true}}}`,
			want: TypeFormFields,
		},
		{
			name: "authenticate",
			data: `{"type":"authenticate","payload":{"userId":4,"companyId":12}}`,
			want: TypeAuthenticate,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.Kind())
		})
	}
}

func TestDecode_PayloadFields(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"form_fields","payload":{"action":"fields_cleared","taskId":7,"formType":"kyb","metadata":{"preserveProgress":true}}}`))
	require.NoError(t, err)

	ff, ok := msg.(FormFields)
	require.True(t, ok)
	assert.Equal(t, int64(7), ff.TaskID)
	assert.Equal(t, "kyb", ff.FormType)
	assert.True(t, ff.Metadata.PreserveProgress)
}

func TestDecode_Rejections(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown type", `{"type":"eval_js","payload":{}}`},
		{"missing payload", `{"type":"task_update"}`},
		{"not json", `{"type":`},
		{"unsupported form_fields action", `{"type":"form_fields","payload":{"action":"drop_tables","taskId":7}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	snap := store.Snapshot{
		TaskID:   42,
		Status:   status.ReadyForSubmission,
		Progress: 100,
		Metadata: store.Metadata{"fieldsCompleted": float64(8)},
		Version:  9,
	}

	data, err := Encode(TaskUpdateOf(snap))
	require.NoError(t, err)

	msg, err := Decode(data)
	require.NoError(t, err)

	update, ok := msg.(TaskUpdate)
	require.True(t, ok)
	assert.Equal(t, int64(42), update.ID)
	assert.Equal(t, status.ReadyForSubmission, update.Status)
	assert.Equal(t, 100, update.Progress)
	assert.Equal(t, int64(9), update.Version)
}
