package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoticeTarget_Matches(t *testing.T) {
	class := int64(1)
	batch := int64(7)
	student, teacher := RoleStudent, RoleTeacher

	studentInClass := Audience{UserID: 1, Role: RoleStudent, ClassIDs: []int64{1}, BatchID: &batch}
	teacherInClass := Audience{UserID: 2, Role: RoleTeacher, ClassIDs: []int64{1}}
	teacherElsewhere := Audience{UserID: 3, Role: RoleTeacher, ClassIDs: []int64{2}}

	tests := []struct {
		name   string
		target NoticeTarget
		who    Audience
		want   bool
	}{
		{"global", NoticeTarget{}, teacherElsewhere, true},
		{"role match", NoticeTarget{Role: &teacher}, teacherElsewhere, true},
		{"role mismatch", NoticeTarget{Role: &student}, teacherElsewhere, false},
		{"class student member", NoticeTarget{ClassID: &class}, studentInClass, true},
		{"class teacher member", NoticeTarget{ClassID: &class}, teacherInClass, true},
		{"class non member", NoticeTarget{ClassID: &class}, teacherElsewhere, false},
		{"class with explicit student role", NoticeTarget{ClassID: &class, Role: &student}, teacherInClass, false},
		{"class and batch anded", NoticeTarget{ClassID: &class, BatchID: &batch}, teacherInClass, false},
		{"class and batch both held", NoticeTarget{ClassID: &class, BatchID: &batch}, studentInClass, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.target.Matches(tt.who))
		})
	}
}

func TestNoticeTarget_AudienceRole(t *testing.T) {
	class := int64(1)
	teacher := RoleTeacher

	role, ok := NoticeTarget{ClassID: &class}.AudienceRole()
	assert.True(t, ok)
	assert.Equal(t, RoleStudent, role)

	role, ok = NoticeTarget{ClassID: &class, Role: &teacher}.AudienceRole()
	assert.True(t, ok)
	assert.Equal(t, RoleTeacher, role)

	_, ok = NoticeTarget{}.AudienceRole()
	assert.False(t, ok)
}
