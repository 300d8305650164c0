package notify

import (
	"html/template"
	"strings"
)

// reportTemplate renders the check-in report as a self-contained HTML email:
// a stats summary grid followed by one card per account.
const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Check-in Report</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', 'PingFang SC', sans-serif;
            margin: 0;
            padding: 20px;
            background-color: #e2e8f0;
        }
        .container {
            max-width: 800px;
            margin: 0 auto;
            background-color: #ffffff;
            border-radius: 16px;
            overflow: hidden;
        }
        .header {
            background: #fafbfc;
            color: #0f172a;
            padding: 40px 20px 30px;
            text-align: center;
            border-bottom: 1px solid #f1f5f9;
        }
        .header h1 { margin: 0; font-size: 28px; font-weight: 700; }
        .summary { padding: 25px 20px; }
        .stats { display: grid; grid-template-columns: repeat(4, 1fr); gap: 10px; }
        .stat-item {
            padding: 18px 12px;
            background: #fafbfc;
            border-radius: 12px;
            border: 1px solid #f1f5f9;
            text-align: center;
        }
        .stat-label { font-size: 13px; color: #64748b; margin-bottom: 8px; }
        .stat-value { font-size: 28px; font-weight: 700; color: #0f172a; }
        .accounts { padding: 25px 20px 30px; }
        .account {
            padding: 18px 20px;
            margin-bottom: 12px;
            border-radius: 12px;
            background-color: #fafbfc;
            border: 1px solid #f1f5f9;
        }
        .account.success { border-left: 4px solid #10b981; }
        .account.failed { border-left: 4px solid #ef4444; }
        .account-header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 10px; }
        .account-name { font-size: 15px; font-weight: 600; color: #333; }
        .account-status {
            font-size: 12px;
            padding: 4px 10px;
            border-radius: 20px;
            font-weight: 600;
            color: white;
        }
        .status-success { background-color: #28a745; }
        .status-failed { background-color: #dc3545; }
        .account-detail { font-size: 13px; color: #666; line-height: 1.8; }
        .error-message {
            color: #dc3545;
            font-size: 13px;
            margin-top: 8px;
            padding: 10px 12px;
            background-color: rgba(220, 53, 69, 0.08);
            border-radius: 8px;
            border-left: 3px solid #dc3545;
        }
        .footer {
            background-color: #fafbfc;
            padding: 20px;
            text-align: center;
            border-top: 1px solid #f1f5f9;
        }
        .footer p { margin: 4px 0; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>🔔 Check-in Report</h1>
        </div>

        <div class="summary">
            <div class="stats">
                <div class="stat-item">
                    <div class="stat-label">Accounts</div>
                    <div class="stat-value">{{ .Total }}</div>
                </div>
                <div class="stat-item">
                    <div class="stat-label">Success</div>
                    <div class="stat-value" style="color: #10b981;">{{ .SuccessCount }}</div>
                </div>
                <div class="stat-item">
                    <div class="stat-label">Failed</div>
                    <div class="stat-value" style="color: #ef4444;">{{ .FailedCount }}</div>
                </div>
                <div class="stat-item">
                    <div class="stat-label">Rate</div>
                    <div class="stat-value" style="color: #06b6d4;">{{ printf "%.0f" .SuccessRate }}%</div>
                </div>
            </div>
        </div>

        <div class="accounts">
            {{ range .Accounts }}
            <div class="account {{ if .Success }}success{{ else }}failed{{ end }}">
                <div class="account-header">
                    <div class="account-name">{{ .Name }}</div>
                    <div class="account-status {{ if .Success }}status-success{{ else }}status-failed{{ end }}">
                        {{ if .Success }}✅ OK{{ else }}❌ Failed{{ end }}
                    </div>
                </div>
                {{ if .Success }}
                <div class="account-detail">
                    <strong>💰 Balance:</strong> ${{ printf "%.2f" .Quota }} |
                    <strong>Used:</strong> ${{ printf "%.2f" .UsedQuota }}
                </div>
                {{ else }}
                <div class="error-message">⚠️ {{ .Error }}</div>
                {{ end }}
            </div>
            {{ end }}
        </div>

        <div class="footer">
            <p>⏰ {{ .Timestamp }}</p>
            <p style="color: #999;">Generated by the check-in automation</p>
        </div>
    </div>
</body>
</html>
`

var reportTmpl = template.Must(template.New("report").Parse(reportTemplate))

// RenderReport renders the structured payload into the HTML email body.
func RenderReport(data ReportData) (string, error) {
	var sb strings.Builder
	if err := reportTmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
