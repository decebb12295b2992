package notify

import (
	"fmt"

	"github.com/ddev/ddev-add-on-monitoring/models"
)

// Issue and comment wording. The exact text is not part of any contract;
// only the title base and resolved marker in notify.go carry state.

func suspendedIssueBody(repo models.Repository) string {
	return fmt.Sprintf(`The automated test workflow for %s is currently disabled, so the add-on is no longer being tested against new DDEV releases.

GitHub suspends scheduled workflows after 60 days without repository activity, and they can also be disabled manually. To re-enable it, visit the Actions tab of this repository and click "Enable workflow".

See https://ddev.readthedocs.io/en/stable/users/extend/additional-services/ for details on add-on maintenance.

This issue was opened automatically and will be closed automatically once the workflow is active again.`, repo.FullName())
}

func followUpBody(repo models.Repository, count, max int) string {
	return fmt.Sprintf(`Friendly reminder: the test workflow for %s is still disabled. Please re-enable it from the Actions tab so the add-on keeps getting tested.

This is notification %d of %d; no further reminders will be sent after that.`, repo.FullName(), count, max)
}

func resolutionBody(repo models.Repository) string {
	return fmt.Sprintf(`The test workflow for %s is active again. Closing this issue automatically. Thanks for maintaining your add-on!`, repo.FullName())
}
