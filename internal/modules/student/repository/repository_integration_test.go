//go:build testutil

package repository

import (
	"context"
	"testing"
	"time"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/policy"
	"anoa.com/schoolportal/internal/testutil/testdb"
	"anoa.com/schoolportal/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitted(s entity.Student) *entity.AdminNotification {
	return &entity.AdminNotification{
		Type:          entity.NotificationGuardianLinkSubmitted,
		Title:         "New guardian link",
		Message:       s.FullName(),
		RelatedUserID: &s.ParentID,
	}
}

func TestCreate_IndexIsGloballyUnique(t *testing.T) {
	db := testdb.Start(t)
	repo := NewStudentRepository(db)
	ctx := context.Background()
	first := testdb.User(t, db, policy.RoleParent, true)
	second := testdb.User(t, db, policy.RoleParent, true)

	a := entity.Student{IndexNo: "S-001", FirstName: "Amani", LastName: "Juma", Grade: "Form I", ParentID: first.ID}
	require.NoError(t, repo.Create(ctx, &a, submitted(a)))

	b := entity.Student{IndexNo: "S-001", FirstName: "Baraka", LastName: "Ali", Grade: "Form II", ParentID: second.ID}
	assert.ErrorIs(t, repo.Create(ctx, &b, submitted(b)), apperror.ErrConflict)

	var notices int64
	require.NoError(t, db.Model(&entity.AdminNotification{}).Count(&notices).Error)
	assert.Equal(t, int64(1), notices, "failed create must not leave a notification")

	b.IndexNo = "S-002"
	require.NoError(t, repo.Create(ctx, &b, nil))
	b.IndexNo = "S-001"
	assert.ErrorIs(t, repo.Update(ctx, &b, "index_no"), apperror.ErrConflict)
}

func TestDecide_ApproveThenReject(t *testing.T) {
	db := testdb.Start(t)
	repo := NewStudentRepository(db)
	ctx := context.Background()
	admin := testdb.User(t, db, policy.RoleAdmin, true)
	parent := testdb.User(t, db, policy.RoleParent, false)

	s := entity.Student{IndexNo: "S-100", FirstName: "Neema", LastName: "Mushi", Grade: "Form III", ParentID: parent.ID}
	require.NoError(t, repo.Create(ctx, &s, submitted(s)))

	at := time.Now().UTC().Truncate(time.Second)
	d, err := repo.Decide(ctx, s.ID, DecideInput{Verdict: policy.VerdictApprove, AdminID: admin.ID, Notes: "checked", At: at})
	require.NoError(t, err)
	assert.True(t, d.Changed)
	assert.Equal(t, policy.LinkApproved, d.State)
	require.NotNil(t, d.Parent)
	assert.Equal(t, parent.ID, d.Parent.ID)

	stored, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsApproved)
	require.NotNil(t, stored.ApprovedBy)
	assert.Equal(t, admin.ID, *stored.ApprovedBy)
	require.NotNil(t, stored.ApprovalNotes)
	assert.Equal(t, "checked", *stored.ApprovalNotes)

	var unread int64
	require.NoError(t, db.Model(&entity.AdminNotification{}).Where("is_read = ?", false).Count(&unread).Error)
	assert.Zero(t, unread)

	d, err = repo.Decide(ctx, s.ID, DecideInput{Verdict: policy.VerdictApprove, AdminID: admin.ID, At: at})
	require.NoError(t, err)
	assert.False(t, d.Changed)

	_, err = repo.Decide(ctx, s.ID, DecideInput{Verdict: policy.VerdictReject, AdminID: admin.ID, At: at})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestDecide_RejectDeletesAndRecordsReason(t *testing.T) {
	db := testdb.Start(t)
	repo := NewStudentRepository(db)
	ctx := context.Background()
	admin := testdb.User(t, db, policy.RoleAdmin, true)
	parent := testdb.User(t, db, policy.RoleParent, true)

	s := entity.Student{IndexNo: "S-200", FirstName: "Zawadi", LastName: "Kimaro", Grade: "Form IV", ParentID: parent.ID}
	require.NoError(t, repo.Create(ctx, &s, submitted(s)))

	d, err := repo.Decide(ctx, s.ID, DecideInput{Verdict: policy.VerdictReject, AdminID: admin.ID, At: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, policy.LinkDeleted, d.State)
	require.NotNil(t, d.Notification)
	assert.Contains(t, d.Notification.Message, "No reason provided")

	gone, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	var rejected int64
	require.NoError(t, db.Model(&entity.AdminNotification{}).
		Where("type = ?", entity.NotificationGuardianLinkRejected).
		Count(&rejected).Error)
	assert.Equal(t, int64(1), rejected)

	_, err = repo.Decide(ctx, s.ID, DecideInput{Verdict: policy.VerdictReject, AdminID: admin.ID, At: time.Now()})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
