package email

const inviteEmailTemplate = `
<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #1f2933;">
  <h2>{{.AppName}}</h2>
  <p>{{.InviterName}} invited you to join <strong>{{.WorkspaceName}}</strong> as {{.Role}}.</p>
  <p>To get started, set your password:</p>
  <p><a href="{{.SetupURL}}" style="background: #2563eb; color: #fff; padding: 10px 18px; border-radius: 6px; text-decoration: none;">Set up my account</a></p>
  <p style="color: #6b7280; font-size: 13px;">If you were not expecting this invitation you can ignore this email.</p>
</body>
</html>
`

const summaryEmailTemplate = `
<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #1f2933;">
  <h2>{{.AppName}} — {{.WorkspaceName}}</h2>
  <p>Activity for {{.Date}}:</p>
  <ul>
    {{range .Lines}}<li>{{.}}</li>
    {{end}}
  </ul>
</body>
</html>
`
