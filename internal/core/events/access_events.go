package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeUserRegistered      = "user.registered"
	EventTypeUserApproved        = "user.approved"
	EventTypeUserDeleted         = "user.deleted"
	EventTypeUserAdminChanged    = "user.admin_changed"
	EventTypeUserGroupChanged    = "user.group_changed"
	EventTypeGroupCreated        = "group.created"
	EventTypeGroupDeleted        = "group.deleted"
	EventTypePermissionChanged   = "permission.changed"
	EventTypeRegistrationToggled = "registration.toggled"
	EventTypeIndexRebuilt        = "index.rebuilt"
)

// AuditEventTypes lists every event the audit subscriber cares about.
var AuditEventTypes = []string{
	EventTypeUserRegistered,
	EventTypeUserApproved,
	EventTypeUserDeleted,
	EventTypeUserAdminChanged,
	EventTypeUserGroupChanged,
	EventTypeGroupCreated,
	EventTypeGroupDeleted,
	EventTypePermissionChanged,
	EventTypeRegistrationToggled,
	EventTypeIndexRebuilt,
}

func newBaseEvent(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func NewUserRegisteredEvent(username string) BaseEvent {
	return newBaseEvent(EventTypeUserRegistered, map[string]interface{}{
		"username": username,
	})
}

func NewUserApprovedEvent(username string) BaseEvent {
	return newBaseEvent(EventTypeUserApproved, map[string]interface{}{
		"username": username,
	})
}

func NewUserDeletedEvent(username string) BaseEvent {
	return newBaseEvent(EventTypeUserDeleted, map[string]interface{}{
		"username": username,
	})
}

func NewUserAdminChangedEvent(username string, admin bool) BaseEvent {
	return newBaseEvent(EventTypeUserAdminChanged, map[string]interface{}{
		"username": username,
		"admin":    admin,
	})
}

func NewUserGroupChangedEvent(username, group string, added bool) BaseEvent {
	return newBaseEvent(EventTypeUserGroupChanged, map[string]interface{}{
		"username": username,
		"group":    group,
		"added":    added,
	})
}

func NewGroupCreatedEvent(group string) BaseEvent {
	return newBaseEvent(EventTypeGroupCreated, map[string]interface{}{
		"group": group,
	})
}

func NewGroupDeletedEvent(group string) BaseEvent {
	return newBaseEvent(EventTypeGroupDeleted, map[string]interface{}{
		"group": group,
	})
}

func NewPermissionChangedEvent(ownerType, ownerName, pkg, level string, granted bool) BaseEvent {
	return newBaseEvent(EventTypePermissionChanged, map[string]interface{}{
		"owner_type": ownerType,
		"owner_name": ownerName,
		"package":    pkg,
		"level":      level,
		"granted":    granted,
	})
}

func NewRegistrationToggledEvent(allow bool) BaseEvent {
	return newBaseEvent(EventTypeRegistrationToggled, map[string]interface{}{
		"allow": allow,
	})
}

func NewIndexRebuiltEvent(packages int) BaseEvent {
	return newBaseEvent(EventTypeIndexRebuilt, map[string]interface{}{
		"packages": packages,
	})
}
