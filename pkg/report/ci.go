package report

import "os"

// DetectCI builds CI metadata from well-known environment variables.
// Returns nil when not running under a recognized CI system.
func DetectCI() *CI {
	switch {
	case os.Getenv("GITHUB_ACTIONS") == "true":
		return &CI{
			Provider: "github-actions",
			BuildID:  os.Getenv("GITHUB_RUN_ID"),
			BuildURL: os.Getenv("GITHUB_SERVER_URL") + "/" + os.Getenv("GITHUB_REPOSITORY") + "/actions/runs/" + os.Getenv("GITHUB_RUN_ID"),
			Branch:   os.Getenv("GITHUB_REF_NAME"),
			Commit:   os.Getenv("GITHUB_SHA"),
		}
	case os.Getenv("GITLAB_CI") == "true":
		return &CI{
			Provider:      "gitlab-ci",
			BuildID:       os.Getenv("CI_PIPELINE_ID"),
			BuildURL:      os.Getenv("CI_PIPELINE_URL"),
			Branch:        os.Getenv("CI_COMMIT_REF_NAME"),
			Commit:        os.Getenv("CI_COMMIT_SHA"),
			CommitMessage: os.Getenv("CI_COMMIT_MESSAGE"),
		}
	case os.Getenv("JENKINS_URL") != "":
		return &CI{
			Provider: "jenkins",
			BuildID:  os.Getenv("BUILD_ID"),
			BuildURL: os.Getenv("BUILD_URL"),
			Branch:   os.Getenv("GIT_BRANCH"),
			Commit:   os.Getenv("GIT_COMMIT"),
		}
	case os.Getenv("CI") == "true":
		return &CI{Provider: "generic"}
	}
	return nil
}
