package dto

import (
	commonDto "anoa.com/schoolportal/pkg/dto"
)

type NotificationFilter struct {
	commonDto.PageQuery
	UnreadOnly bool `form:"unread"`
}
