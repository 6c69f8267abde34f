package docstore

import "path"

const (
	BusinessesCollection  = "businesses"
	UsersCollection       = "users"
	InvitationsCollection = "invitations"
)

func BusinessPath(businessID string) string {
	return path.Join(BusinessesCollection, businessID)
}

func Cards(businessID string) string {
	return path.Join(BusinessPath(businessID), "cards")
}

func CardTemplates(businessID string) string {
	return path.Join(BusinessPath(businessID), "cardTemplates")
}

func TemplateProfiles(businessID string) string {
	return path.Join(BusinessPath(businessID), "templateProfiles")
}

func Sheets(businessID string) string {
	return path.Join(BusinessPath(businessID), "sheets")
}

func TeamMembers(businessID string) string {
	return path.Join(BusinessPath(businessID), "teamMembers")
}

func AuditLogs(businessID string) string {
	return path.Join(BusinessPath(businessID), "auditLogs")
}

// Doc joins a collection and a document id.
func Doc(collection, id string) string {
	return collection + "/" + id
}
