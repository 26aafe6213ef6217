package crawljob

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/strob0t/scavengarr/internal/domain"
)

// Serialize renders a CrawlJob to the key=value CRLF file format
// understood by JDownloader-compatible download clients. Required keys:
// text, packageName, autoStart, priority, enabled. text uses CRLF as the
// inter-URL separator.
func Serialize(job domain.CrawlJob) []byte {
	var b strings.Builder
	writeLine := func(key, value string) {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(value)
		b.WriteString("\r\n")
	}

	writeLine("text", strings.Join(job.Text, "\r\n"))
	writeLine("packageName", job.PackageName)
	if job.Filename != "" {
		writeLine("filename", job.Filename)
	}
	if job.Comment != "" {
		writeLine("comment", job.Comment)
	}
	writeLine("autoStart", job.AutoStart.String())
	writeLine("priority", string(job.Priority))
	writeLine("enabled", job.Enabled.String())

	if job.AutoConfirm != domain.TriUnset {
		writeLine("autoConfirm", job.AutoConfirm.String())
	}
	if job.ForcedStart != domain.TriUnset {
		writeLine("forcedStart", job.ForcedStart.String())
	}
	if job.ExtractAfterDownload != domain.TriUnset {
		writeLine("extractAfterDownload", job.ExtractAfterDownload.String())
	}
	if job.Chunks != 0 {
		writeLine("chunks", strconv.Itoa(job.Chunks))
	}
	if job.DownloadFolder != "" {
		writeLine("downloadFolder", job.DownloadFolder)
	}
	if len(job.ExtractPasswords) > 0 {
		encoded, _ := json.Marshal(job.ExtractPasswords)
		writeLine("extractPasswords", string(encoded))
	}
	if job.DownloadPassword != "" {
		writeLine("downloadPassword", job.DownloadPassword)
	}
	if job.DeepAnalyseEnabled != domain.TriUnset {
		writeLine("deepAnalyseEnabled", job.DeepAnalyseEnabled.String())
	}
	if job.AddOfflineLink != domain.TriUnset {
		writeLine("addOfflineLink", job.AddOfflineLink.String())
	}
	if job.OverwritePackagizer != domain.TriUnset {
		writeLine("overwritePackagizerEnabled", job.OverwritePackagizer.String())
	}
	if job.SetBeforePackagizer != domain.TriUnset {
		writeLine("setBeforePackagizerEnabled", job.SetBeforePackagizer.String())
	}

	return []byte(b.String())
}

// knownCrawlJobKeys is every recognized key=value line. A scanned line
// whose key isn't in this set (or that has no '=') is appended to the
// "text" value while it directly follows that value's lines, and is
// ignored anywhere else — the CRLF separators
// joining multiple URLs inside "text" are themselves line breaks once the
// file is read back line by line, so a URL-per-line reassembly pass is
// required to recover the original list.
var knownCrawlJobKeys = map[string]bool{
	"text": true, "packageName": true, "filename": true, "comment": true,
	"autoStart": true, "priority": true, "enabled": true, "autoConfirm": true,
	"forcedStart": true, "extractAfterDownload": true, "chunks": true,
	"downloadFolder": true, "extractPasswords": true, "downloadPassword": true,
	"deepAnalyseEnabled": true, "addOfflineLink": true,
	"overwritePackagizerEnabled": true, "setBeforePackagizerEnabled": true,
}

// Parse reverses Serialize, preserving field order and values for a
// stable round trip.
func Parse(raw []byte) (domain.CrawlJob, error) {
	var job domain.CrawlJob
	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	scanner.Buffer(make([]byte, 0, 64*1024), 8<<20)

	collectingText := false
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			collectingText = false
			continue
		}
		idx := strings.IndexByte(line, '=')
		key := ""
		if idx >= 0 {
			key = line[:idx]
		}
		if idx < 0 || !knownCrawlJobKeys[key] {
			if collectingText {
				job.Text = append(job.Text, line)
			}
			continue
		}
		collectingText = false
		value := line[idx+1:]
		switch key {
		case "text":
			if value != "" {
				job.Text = append(job.Text, value)
			}
			collectingText = true
		case "packageName":
			job.PackageName = value
		case "filename":
			job.Filename = value
		case "comment":
			job.Comment = value
		case "autoStart":
			job.AutoStart = parseTriBool(value)
		case "priority":
			job.Priority = domain.Priority(value)
		case "enabled":
			job.Enabled = parseTriBool(value)
		case "autoConfirm":
			job.AutoConfirm = parseTriBool(value)
		case "forcedStart":
			job.ForcedStart = parseTriBool(value)
		case "extractAfterDownload":
			job.ExtractAfterDownload = parseTriBool(value)
		case "chunks":
			if n, err := strconv.Atoi(value); err == nil {
				job.Chunks = n
			}
		case "downloadFolder":
			job.DownloadFolder = value
		case "extractPasswords":
			var passwords []string
			if err := json.Unmarshal([]byte(value), &passwords); err == nil {
				job.ExtractPasswords = passwords
			}
		case "downloadPassword":
			job.DownloadPassword = value
		case "deepAnalyseEnabled":
			job.DeepAnalyseEnabled = parseTriBool(value)
		case "addOfflineLink":
			job.AddOfflineLink = parseTriBool(value)
		case "overwritePackagizerEnabled":
			job.OverwritePackagizer = parseTriBool(value)
		case "setBeforePackagizerEnabled":
			job.SetBeforePackagizer = parseTriBool(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return domain.CrawlJob{}, fmt.Errorf("crawljob: parse: %w", err)
	}
	return job, nil
}

func parseTriBool(raw string) domain.TriBool {
	switch raw {
	case "TRUE":
		return domain.TriTrue
	case "FALSE":
		return domain.TriFalse
	default:
		return domain.TriUnset
	}
}
