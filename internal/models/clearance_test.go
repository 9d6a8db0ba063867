package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func record(key string, group CheckpointGroup, status CheckpointStatus) ApprovalRecord {
	return ApprovalRecord{CheckpointKey: key, Group: group, Status: status}
}

func TestAggregateRecordsAllApproved(t *testing.T) {
	records := []ApprovalRecord{
		record("CS301", GroupSubjects, CheckpointStatusApproved),
		record("MA204", GroupSubjects, CheckpointStatusApproved),
		record(CheckpointKeyOffice, GroupAdmin, CheckpointStatusApproved),
		record(CheckpointKeyHOD, GroupAdmin, CheckpointStatusApproved),
		record(CheckpointKeyPrincipal, GroupAdmin, CheckpointStatusApproved),
	}

	agg := AggregateRecords(records)
	require.Equal(t, CheckpointStatusApproved, agg.Subjects)
	require.Equal(t, CheckpointStatusApproved, agg.Admin)
	require.Equal(t, CheckpointStatusApproved, agg.Overall)
	require.True(t, agg.Terminal)
}

func TestAggregateRecordsPendingWhileAnyUndetermined(t *testing.T) {
	records := []ApprovalRecord{
		record("CS301", GroupSubjects, CheckpointStatusApproved),
		record("MA204", GroupSubjects, CheckpointStatusPending),
		record(CheckpointKeyOffice, GroupAdmin, CheckpointStatusApproved),
		record(CheckpointKeyHOD, GroupAdmin, CheckpointStatusPending),
		record(CheckpointKeyPrincipal, GroupAdmin, CheckpointStatusPending),
	}

	agg := AggregateRecords(records)
	require.Equal(t, CheckpointStatusPending, agg.Subjects)
	require.Equal(t, CheckpointStatusPending, agg.Admin)
	require.Equal(t, CheckpointStatusPending, agg.Overall)
	require.False(t, agg.Terminal)
}

func TestAggregateRecordsRejectionDominates(t *testing.T) {
	records := []ApprovalRecord{
		record("CS301", GroupSubjects, CheckpointStatusRejected),
		record("MA204", GroupSubjects, CheckpointStatusApproved),
		record(CheckpointKeyOffice, GroupAdmin, CheckpointStatusApproved),
		record(CheckpointKeyHOD, GroupAdmin, CheckpointStatusPending),
		record(CheckpointKeyPrincipal, GroupAdmin, CheckpointStatusPending),
	}

	agg := AggregateRecords(records)
	require.Equal(t, CheckpointStatusRejected, agg.Subjects)
	require.Equal(t, CheckpointStatusPending, agg.Admin)
	require.Equal(t, CheckpointStatusRejected, agg.Overall)
	require.True(t, agg.Terminal)
}

func TestAggregateRecordsAdminRejection(t *testing.T) {
	records := []ApprovalRecord{
		record("CS301", GroupSubjects, CheckpointStatusApproved),
		record(CheckpointKeyOffice, GroupAdmin, CheckpointStatusRejected),
		record(CheckpointKeyHOD, GroupAdmin, CheckpointStatusPending),
		record(CheckpointKeyPrincipal, GroupAdmin, CheckpointStatusPending),
	}

	agg := AggregateRecords(records)
	require.Equal(t, CheckpointStatusRejected, agg.Admin)
	require.Equal(t, CheckpointStatusRejected, agg.Overall)
	require.True(t, agg.Terminal)
}

func TestAggregateRecordsEmptySubjectsVacuouslyApproved(t *testing.T) {
	records := []ApprovalRecord{
		record(CheckpointKeyOffice, GroupAdmin, CheckpointStatusPending),
		record(CheckpointKeyHOD, GroupAdmin, CheckpointStatusPending),
		record(CheckpointKeyPrincipal, GroupAdmin, CheckpointStatusPending),
	}

	agg := AggregateRecords(records)
	require.Equal(t, CheckpointStatusApproved, agg.Subjects)
	require.Equal(t, CheckpointStatusPending, agg.Admin)
	require.Equal(t, CheckpointStatusPending, agg.Overall)
	require.False(t, agg.Terminal)
}

func TestAggregateRecordsEmptySubjectsCompleteOnAdminApproval(t *testing.T) {
	records := []ApprovalRecord{
		record(CheckpointKeyOffice, GroupAdmin, CheckpointStatusApproved),
		record(CheckpointKeyHOD, GroupAdmin, CheckpointStatusApproved),
		record(CheckpointKeyPrincipal, GroupAdmin, CheckpointStatusApproved),
	}

	agg := AggregateRecords(records)
	require.Equal(t, CheckpointStatusApproved, agg.Overall)
	require.True(t, agg.Terminal)
}
