package version

// will be replaced with the release version when using goreleaser
var version = "development"

// ClientVersion returns the codepush client version
func ClientVersion() string {
	return version
}

// UserAgent returns the value sent in the User-Agent header of every request to the update server
func UserAgent() string {
	return "codepush-client/" + version
}
