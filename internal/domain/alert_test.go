package domain

import (
	"testing"
)

func TestNewOddsAlert_Direction(t *testing.T) {
	t.Run("UP direction when target > current", func(t *testing.T) {
		alert := NewOddsAlert(1, 1, 2_100_000_000, 1_900_000_000, false)
		if alert.Direction != "UP" {
			t.Errorf("Expected UP, got %s", alert.Direction)
		}
	})

	t.Run("DOWN direction when target < current", func(t *testing.T) {
		alert := NewOddsAlert(1, 1, 1_500_000_000, 1_900_000_000, false)
		if alert.Direction != "DOWN" {
			t.Errorf("Expected DOWN, got %s", alert.Direction)
		}
	})

	t.Run("UP direction when target = current", func(t *testing.T) {
		alert := NewOddsAlert(1, 1, 1_900_000_000, 1_900_000_000, false)
		if alert.Direction != "UP" {
			t.Errorf("Expected UP for equal odds, got %s", alert.Direction)
		}
	})
}

func TestOddsAlert_CheckCondition(t *testing.T) {
	up := func() *OddsAlert { return NewOddsAlert(1, 1, 2_000_000_000, 1_900_000_000, false) }

	t.Run("UP alert triggers at target", func(t *testing.T) {
		if !up().CheckCondition(2_000_000_000) {
			t.Error("Should trigger at target odds")
		}
	})

	t.Run("UP alert does not trigger below target", func(t *testing.T) {
		if up().CheckCondition(1_999_999_999) {
			t.Error("Should not trigger below target odds")
		}
	})

	t.Run("DOWN alert triggers below target", func(t *testing.T) {
		alert := NewOddsAlert(1, 2, 1_500_000_000, 1_900_000_000, false)
		if !alert.CheckCondition(1_400_000_000) {
			t.Error("Should trigger below target odds")
		}
	})

	t.Run("Inactive alert does not trigger", func(t *testing.T) {
		alert := up()
		alert.SetActive(false)
		if alert.CheckCondition(3_000_000_000) {
			t.Error("Inactive alert should not trigger")
		}
	})
}
