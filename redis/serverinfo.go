package redis

import (
	"regexp"
	"strconv"
	"strings"
)

// The compatibility contract with the server's INFO output.
var (
	versionRegexp  = regexp.MustCompile(`(?i)redis_version:([0-9]+\.[0-9]+)`)
	modeRegexp     = regexp.MustCompile(`(?i)redis_mode:([a-z]+)`)
	keyspaceRegexp = regexp.MustCompile(`(?m)^db(\d+):keys=(\d+).*`)
)

// ParsedServerInfo maps INFO section name to property name to value.
type ParsedServerInfo map[string]map[string]string

// ServerInfo is the digest of an INFO ALL reply: version (major.minor
// only), deployment mode and the approximate per-database key counts.
type ServerInfo struct {
	Version      float64
	ClusterMode  bool
	SentinelMode bool

	// Databases maps db index to key count. In cluster mode it is
	// exactly {0: 0}; in sentinel mode it is empty and keyspace lines
	// are not read; otherwise it is densely filled from 0 up to the
	// highest index INFO reported, with 0 for unreported databases.
	Databases map[int]int

	Parsed ParsedServerInfo
}

// ParseServerInfo parses raw INFO text. Lines starting with "#" open
// a section; other lines split on the first ":"; lines without a
// colon are ignored.
func ParseServerInfo(info string) ServerInfo {
	parsed := make(ParsedServerInfo)
	section := "unknown"

	for _, line := range strings.Split(info, "\r\n") {
		if strings.HasPrefix(line, "#") {
			if len(line) > 2 {
				section = strings.ToLower(line[2:])
			} else {
				section = ""
			}
			continue
		}

		sep := strings.Index(line, ":")
		if sep == -1 {
			continue
		}
		if parsed[section] == nil {
			parsed[section] = make(map[string]string)
		}
		parsed[section][line[:sep]] = line[sep+1:]
	}

	result := ServerInfo{
		Databases: make(map[int]int),
		Parsed:    parsed,
	}

	if m := versionRegexp.FindStringSubmatch(info); m != nil {
		result.Version, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := modeRegexp.FindStringSubmatch(info); m != nil {
		switch m[1] {
		case "cluster":
			result.ClusterMode = true
		case "sentinel":
			result.SentinelMode = true
		}
	}

	if result.ClusterMode {
		result.Databases[0] = 0
		return result
	}
	if result.SentinelMode {
		return result
	}

	for _, m := range keyspaceRegexp.FindAllStringSubmatch(info, -1) {
		dbIndex, _ := strconv.Atoi(m[1])
		keys, _ := strconv.Atoi(m[2])
		result.Databases[dbIndex] = keys
	}

	if len(result.Databases) == 0 {
		return result
	}

	lastKnown := 0
	for dbIndex := range result.Databases {
		if dbIndex > lastKnown {
			lastKnown = dbIndex
		}
	}
	for dbIndex := 0; dbIndex < lastKnown; dbIndex++ {
		if _, ok := result.Databases[dbIndex]; !ok {
			result.Databases[dbIndex] = 0
		}
	}

	return result
}
