package notify

const emailHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Top {{len .Recommendations}} Papers of {{.Date}}</title>
  <style>
    body {
      margin: 0;
      padding: 24px;
      background-color: #f3f4f6;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
      color: #111827;
      line-height: 1.5;
    }

    .container {
      max-width: 680px;
      margin: 0 auto;
      background: #ffffff;
      border-radius: 8px;
      border: 1px solid #e5e7eb;
      overflow: hidden;
    }

    .header {
      padding: 20px 24px;
      background: #1f2937;
      color: #ffffff;
      font-size: 20px;
      font-weight: 700;
    }

    .paper {
      padding: 16px 24px;
      border-top: 1px solid #f3f4f6;
    }

    .paper-title {
      font-size: 16px;
      font-weight: 600;
      color: #0369a1;
      text-decoration: none;
    }

    .score {
      display: inline-block;
      margin-left: 8px;
      padding: 2px 8px;
      font-size: 12px;
      font-weight: 600;
      border-radius: 4px;
      background: #dcfce7;
      color: #166534;
    }

    .authors {
      font-size: 13px;
      color: #6b7280;
      margin: 4px 0 8px;
    }

    .abstract {
      font-size: 14px;
      color: #374151;
    }

    .footer {
      padding: 12px 24px;
      font-size: 12px;
      color: #9ca3af;
      border-top: 1px solid #f3f4f6;
    }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">Top {{len .Recommendations}} Papers of {{.Date}} for You</div>
    {{range $i, $p := .Recommendations}}
    <div class="paper">
      <span>{{inc $i}}.</span>
      <a class="paper-title" href="{{$p.Link}}">{{$p.Title}}</a>
      {{if $p.Scored}}<span class="score">{{$p.Score}}/10</span>{{end}}
      <div class="authors">{{$p.Authors}}</div>
      {{if $p.Abstract}}<div class="abstract">{{$p.Abstract}}</div>{{end}}
    </div>
    {{end}}
    <div class="footer">
      Ranked {{.Stats.Scored}} of {{.Stats.Papers}} papers with {{.Provider}}/{{.Model}}{{if .Stats.FailedBatches}}; {{.Stats.FailedBatches}} of {{.Stats.Batches}} batches failed{{end}}.
    </div>
  </div>
</body>
</html>
`
