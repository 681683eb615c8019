//go:build testutil

package service

import (
	"context"
	"testing"

	"anoa.com/schoolportal/internal/entity"
	annRepo "anoa.com/schoolportal/internal/modules/announcement/repository"
	authDto "anoa.com/schoolportal/internal/modules/auth/dto"
	authService "anoa.com/schoolportal/internal/modules/auth/service"
	studentDto "anoa.com/schoolportal/internal/modules/student/dto"
	studentRepo "anoa.com/schoolportal/internal/modules/student/repository"
	studentService "anoa.com/schoolportal/internal/modules/student/service"
	userRepo "anoa.com/schoolportal/internal/modules/user/repository"
	"anoa.com/schoolportal/internal/policy"
	"anoa.com/schoolportal/internal/testutil/testdb"
	"anoa.com/schoolportal/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_FollowsGuardianLinkApproval(t *testing.T) {
	db := testdb.Start(t)
	ctx := context.Background()

	users := userRepo.NewUserRepository(db)
	students := studentRepo.NewStudentRepository(db)
	posts := annRepo.NewAnnouncementRepository(db)

	auth := authService.NewAuthService(users, students, nil, 0, nil)
	links := studentService.NewStudentService(students, users, nil, nil, 0, nil)
	svc := NewAnnouncementService(posts, students, students, nil, nil, nil)

	admin := testdb.User(t, db, policy.RoleAdmin, true)
	adminActor, err := policy.NewActor(admin.ID, admin.Name, policy.RoleAdmin, true)
	require.NoError(t, err)

	for _, p := range []entity.Post{
		{Title: "school news", Visibility: "all"},
		{Title: "form one trip", Visibility: "parents", Targets: []entity.PostTarget{{Kind: "grade", Value: "Form I"}}},
		{Title: "form three exams", Visibility: "parents", Targets: []entity.PostTarget{{Kind: "grade", Value: "Form III"}}},
	} {
		p.Content = "body"
		p.Category = entity.DefaultCategory
		p.UserID = admin.ID
		require.NoError(t, posts.Create(ctx, &p))
	}

	registered, err := auth.Register(ctx, authDto.RegisterInput{
		Name: "Amina", Email: "amina@school.test", Password: "secret1", ConfirmPassword: "secret1",
	})
	require.NoError(t, err)
	require.False(t, registered.IsApproved)

	pending, err := policy.NewActor(registered.ID, registered.Name, policy.RoleParent, false)
	require.NoError(t, err)
	link, err := links.SubmitGuardianLink(ctx, pending, studentDto.GuardianLinkInput{
		IndexNo: "S-1001", FirstName: "Juma", LastName: "Ali", Grade: "Form I",
	})
	require.NoError(t, err)

	_, err = svc.Feed(ctx, pending)
	assert.ErrorIs(t, err, apperror.ErrPendingApproval)

	_, changed, err := users.Approve(ctx, registered.ID)
	require.NoError(t, err)
	require.True(t, changed)
	parent, err := policy.NewActor(registered.ID, registered.Name, policy.RoleParent, true)
	require.NoError(t, err)

	before, err := svc.Feed(ctx, parent)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"school news"}, titles(before))

	_, err = links.DecideGuardianLink(ctx, adminActor, link.ID, studentDto.DecisionInput{Decision: string(policy.VerdictApprove)})
	require.NoError(t, err)

	after, err := svc.Feed(ctx, parent)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"school news", "form one trip"}, titles(after))
}

