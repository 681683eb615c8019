package service

import (
	"testing"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/policy"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/stretchr/testify/assert"
)

func TestFilterFor(t *testing.T) {
	classID := uuid.MustParse("0190c2b4-0000-7000-8000-000000000001")
	parent, _ := policy.NewActor(uuid.New(), "P", policy.RoleParent, true)
	teacher, _ := policy.NewActor(uuid.New(), "T", policy.RoleTeacher, true)
	admin, _ := policy.NewActor(uuid.New(), "A", policy.RoleAdmin, true)
	aud := policy.NewAudience([]policy.Child{{Grade: "Form II", ClassID: &classID, Approved: true}})

	assert.Equal(t,
		"visibility IN ['all'] AND audience IN ['all']",
		FilterFor(policy.ScopeFor(policy.Anonymous())))
	assert.Equal(t,
		"visibility IN ['all', 'parents'] AND audience IN ['all', 'grade:Form II', 'class:"+classID.String()+"']",
		FilterFor(policy.ScopeFor(policy.Viewer{Actor: parent, Audience: aud})))
	assert.Equal(t,
		"visibility IN ['all', 'teachers']",
		FilterFor(policy.ScopeFor(policy.Viewer{Actor: teacher})))
	assert.Empty(t, FilterFor(policy.ScopeFor(policy.Viewer{Actor: admin})))
}

func TestAudienceTerms(t *testing.T) {
	assert.Equal(t, []string{"all"}, AudienceTerms(nil))
	assert.Equal(t, []string{"grade:Form I", "class:abc"}, AudienceTerms([]entity.PostTarget{
		{Kind: "grade", Value: "Form I"},
		{Kind: "class", Value: "abc"},
	}))
}

func TestCleanContentForIndex(t *testing.T) {
	got := cleanContentForIndex(bluemonday.StrictPolicy(), "<p>Sports&nbsp;day</p><p>Bring <b>water</b> &amp; hats</p>")
	assert.Equal(t, "Sports day Bring water & hats", got)
}
