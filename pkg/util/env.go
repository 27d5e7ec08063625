package util

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/openshift/recipe-to-image/pkg/api"
)

// ReadEnvironmentFile reads the content for a file that contains a list of
// environment variables and values. The file uses the dotenv format, so
// comments, quoted values and "export" prefixes are supported.
func ReadEnvironmentFile(path string) (map[string]string, error) {
	return godotenv.Read(path)
}

// MergeEnvironment returns the variables of the environment file followed by
// the explicit list. Explicit values win over file values of the same name.
// File variables are ordered by name so the result is stable.
func MergeEnvironment(fromFile map[string]string, explicit api.EnvironmentList) api.EnvironmentList {
	seen := map[string]bool{}
	for _, e := range explicit {
		seen[e.Name] = true
	}
	names := make([]string, 0, len(fromFile))
	for name := range fromFile {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	result := make(api.EnvironmentList, 0, len(names)+len(explicit))
	for _, name := range names {
		result = append(result, api.EnvironmentSpec{Name: name, Value: fromFile[name]})
	}
	return append(result, explicit...)
}

var proxyRegex = regexp.MustCompile("(?i).*proxy.*")

// StripProxyCredentials attempts to strip sensitive information from proxy
// environment variables.
func StripProxyCredentials(env []string) []string {
	// case insensitively match all key=value variables containing the word "proxy"
	// in the key and which appear to contain a user:password@host pattern.  We'll
	// keep everything before the = sign, and after the @.
	newEnv := make([]string, len(env))
	copy(newEnv, env)
	for i, entry := range newEnv {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 || !proxyRegex.MatchString(parts[0]) {
			continue
		}
		value := parts[1]
		if !strings.Contains(value, "://") {
			value = "//" + value
		}
		u, err := url.Parse(value)
		if err != nil || u.User == nil {
			continue
		}
		newEnv[i] = fmt.Sprintf("%s=%s%s", parts[0], u.Host, u.EscapedPath())
	}
	return newEnv
}
