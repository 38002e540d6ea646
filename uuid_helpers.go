package coachgate

// HasUserUUID reports whether SessionObject.GetUserUUID will succeed. Hosted
// providers always issue UUID subjects; sessions minted elsewhere may not.
func HasUserUUID(session *SessionObject) bool {
	if session == nil {
		return false
	}
	_, err := session.GetUserUUID()
	return err == nil
}
