package service

import "go.mongodb.org/mongo-driver/bson/primitive"

// CanModify is the single owner-or-privileged policy used by every product
// and order mutation path: admins may act on any resource, everyone else only
// on resources they own.
func CanModify(actorID primitive.ObjectID, actorIsAdmin bool, ownerID primitive.ObjectID) bool {
	if actorIsAdmin {
		return true
	}
	return actorID == ownerID
}
