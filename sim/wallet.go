package sim

// Wallet holds the coins earned on delivery and spent on bend points.
type Wallet struct {
	coins int
}

// NewWallet creates a wallet with a starting balance.
func NewWallet(coins int) *Wallet {
	return &Wallet{coins: coins}
}

func (w *Wallet) Coins() int { return w.coins }

// Earn adds coins.
func (w *Wallet) Earn(n int) {
	w.coins += n
}

// Spend withdraws n coins. It returns false, leaving the balance unchanged,
// when the balance is insufficient.
func (w *Wallet) Spend(n int) bool {
	if n > w.coins {
		return false
	}
	w.coins -= n
	return true
}
